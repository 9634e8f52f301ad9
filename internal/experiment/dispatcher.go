/*
PURPOSE:
  Drives one experiment run end to end: validate the model type, allocate
  the folder, copy the template/config/support scripts in, then run
  train -> predict -> evaluate and persist the scores.

REQUIREMENTS:
  User-specified:
  - Model-type selection is a closed table lookup; unknown types are a
    configuration error reported before any folder is created.
  - The dev/test split only affects the predict and evaluate stages.
  - A failed stage halts the pipeline and leaves the folder intact.

  Implementation-discovered:
  - Stage scripts run with the experiment folder as working directory, so
    their artifacts (model/, predictions, reports) land inside the folder
    while dataset paths are passed absolute.
  - Failed runs are still recorded (run log + registry) for postmortem;
    only completed runs earn a summary row.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/experiment (allocator), internal/stage, internal/output,
    internal/config, internal/model

ERROR HANDLING:
  - ErrUnknownModelType for table misses (usage error, exit 1 upstream).
  - Missing template/config/support files fail before any stage starts.
  - Stage errors propagate as *stage.StageError.

IMPLEMENTATION RULES:
  - Copy first, then run; the folder must be self-contained so a finished
    experiment can be re-inspected after the source tree moves on.
  - Never delete or reuse an experiment folder.

USAGE:
  d := experiment.NewDispatcher(cfg, runner, sinks...)
  rec, err := d.Run(ctx, "features", model.SplitDev)

SELF-HEALING INSTRUCTIONS:
  - "unknown model type" means the config's model_types table and the CLI
    argument disagree; fix the table or the spelling.

RELATED FILES:
  - internal/experiment/allocator.go
  - internal/stage/runner.go

MAINTENANCE:
  - Update stage argument lists together with the Python scripts.
*/

package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/daryltucker/olid-runner/internal/config"
	"github.com/daryltucker/olid-runner/internal/model"
	"github.com/daryltucker/olid-runner/internal/output"
	"github.com/daryltucker/olid-runner/internal/stage"
)

// ErrUnknownModelType reports a model type missing from the dispatch table.
var ErrUnknownModelType = errors.New("unknown model type")

// RunSink receives the finished (or failed) run record. The SQLite
// registry implements this; failures are logged, never fatal.
type RunSink interface {
	Record(ctx context.Context, rec model.RunRecord) error
}

// Dispatcher sequences one experiment run.
type Dispatcher struct {
	cfg    *config.Config
	runner stage.Runner
	sinks  []RunSink
}

// NewDispatcher wires a dispatcher. Extra sinks (e.g. the run registry)
// are advisory and never fail the run.
func NewDispatcher(cfg *config.Config, runner stage.Runner, sinks ...RunSink) *Dispatcher {
	return &Dispatcher{cfg: cfg, runner: runner, sinks: sinks}
}

// ModelTypes returns the table's type names, sorted for stable output.
func (d *Dispatcher) ModelTypes() []string {
	names := make([]string, 0, len(d.cfg.ModelTypes))
	for name := range d.cfg.ModelTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes a full experiment for modelType against the given split.
// The returned record is also written to the run log and all sinks.
func (d *Dispatcher) Run(ctx context.Context, modelType string, split model.Split) (model.RunRecord, error) {
	mt, ok := d.cfg.ModelTypes[modelType]
	if !ok {
		return model.RunRecord{}, fmt.Errorf("%w: %q (known: %s)",
			ErrUnknownModelType, modelType, strings.Join(d.ModelTypes(), ", "))
	}

	folder, seq, err := Allocate(d.cfg.ExperimentsDir, modelType)
	if err != nil {
		return model.RunRecord{}, err
	}

	rec := model.RunRecord{
		ModelType: modelType,
		Sequence:  seq,
		Folder:    folder,
		Split:     split,
		StartedAt: time.Now(),
	}

	output.Logger.Info("Allocated experiment folder", "run", rec.Name(), "folder", folder, "split", split)

	if err := d.populate(folder, mt); err != nil {
		return d.finish(ctx, rec, "", err)
	}

	dataDir, err := filepath.Abs(d.cfg.DataDir)
	if err != nil {
		return d.finish(ctx, rec, "", fmt.Errorf("failed to resolve data directory: %w", err))
	}

	stages := d.stagePlan(mt, dataDir, split)
	for _, inv := range stages {
		inv.Dir = folder
		if err := d.runner.Run(ctx, inv); err != nil {
			return d.finish(ctx, rec, inv.Name, err)
		}
	}

	scores, err := readScores(filepath.Join(folder, "scores.json"))
	if err != nil {
		return d.finish(ctx, rec, model.StageEvaluate, err)
	}
	rec.Scores = &scores

	return d.finish(ctx, rec, "", nil)
}

// stagePlan builds the three stage invocations. Script paths are bare file
// names because the working directory is the experiment folder; dataset
// paths are absolute so they survive the directory change.
func (d *Dispatcher) stagePlan(mt config.ModelType, dataDir string, split model.Split) []stage.Invocation {
	trainArgs := []string{
		"--train-data", filepath.Join(dataDir, "train.tsv"),
		"--model-outp", "model/",
	}
	if mt.Config != "" {
		trainArgs = append(trainArgs, "--config", mt.Config)
	}

	splitData := filepath.Join(dataDir, string(split)+".tsv")
	predictions := string(split) + "_predictions.txt"

	return []stage.Invocation{
		{
			Name:   model.StageTrain,
			Script: mt.Template,
			Args:   trainArgs,
		},
		{
			Name:   model.StagePredict,
			Script: "predict.py",
			Args: []string{
				"--model", "model/",
				"--test-data", splitData,
				"--predictions-outp", predictions,
			},
		},
		{
			Name:   model.StageEvaluate,
			Script: "evaluate.py",
			Args: []string{
				"--gold", splitData,
				"--predictions", predictions,
				"--report-outp", "evaluation.md",
				"--scores-outp", "scores.json",
			},
		},
	}
}

// populate copies the training template, its config file (if any) and the
// shared support scripts into the experiment folder.
func (d *Dispatcher) populate(folder string, mt config.ModelType) error {
	if err := copyFile(filepath.Join(d.cfg.ScriptsDir, mt.Template), filepath.Join(folder, mt.Template)); err != nil {
		return fmt.Errorf("failed to copy training template: %w", err)
	}

	if mt.Config != "" {
		if err := copyFile(filepath.Join(d.cfg.ConfigsDir, mt.Config), filepath.Join(folder, mt.Config)); err != nil {
			return fmt.Errorf("failed to copy model config: %w", err)
		}
	}

	for _, name := range d.cfg.SupportScripts {
		if err := copyFile(filepath.Join(d.cfg.ScriptsDir, name), filepath.Join(folder, name)); err != nil {
			return fmt.Errorf("failed to copy support script %s: %w", name, err)
		}
	}

	return nil
}

// finish stamps the record, persists it everywhere, and returns the
// original error (if any). The experiment folder is always left in place.
func (d *Dispatcher) finish(ctx context.Context, rec model.RunRecord, failedStage string, runErr error) (model.RunRecord, error) {
	rec.FinishedAt = time.Now()

	if runErr != nil {
		rec.Status = model.StatusFailed
		rec.FailedAt = failedStage
		rec.Error = runErr.Error()
		output.Logger.Error("Run failed", "run", rec.Name(), "stage", failedStage, "error", runErr)
	} else {
		rec.Status = model.StatusCompleted
		output.Logger.Info("Run complete",
			"run", rec.Name(),
			"split", rec.Split,
			"accuracy", fmt.Sprintf("%.4f", rec.Scores.Accuracy),
			"f1", fmt.Sprintf("%.4f", rec.Scores.F1),
		)
	}

	if runErr == nil {
		if err := d.appendSummary(rec); err != nil {
			output.Logger.Error("Failed to write results summary", "run", rec.Name(), "error", err)
		}
	}

	if err := d.appendRunLog(rec); err != nil {
		output.Logger.Error("Failed to write run log", "run", rec.Name(), "error", err)
	}

	for _, sink := range d.sinks {
		if err := sink.Record(ctx, rec); err != nil {
			output.Logger.Error("Failed to record run", "run", rec.Name(), "error", err)
		}
	}

	return rec, runErr
}

func (d *Dispatcher) appendSummary(rec model.RunRecord) error {
	w, err := output.OpenSummary(d.cfg.ResultsDir, rec.ModelType)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Append(rec)
}

func (d *Dispatcher) appendRunLog(rec model.RunRecord) error {
	w, err := output.OpenRunLog(d.cfg.ResultsDir)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Write(rec)
}

// readScores loads the evaluation stage's scores.json.
func readScores(path string) (model.Scores, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Scores{}, fmt.Errorf("evaluation produced no readable scores: %w", err)
	}

	var s model.Scores
	if err := json.Unmarshal(data, &s); err != nil {
		return model.Scores{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return s, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
