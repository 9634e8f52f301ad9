/*
PURPOSE:
  Defines the core data structures used throughout olid-runner.
  These models represent experiment runs and their evaluation scores.

REQUIREMENTS:
  User-specified:
  - Identify a run by (model type, sequence number).
  - Track the dataset split (dev/test), folder path, and outcome.

  Implementation-discovered:
  - Need JSON tags for the runs.jsonl log and scores.json ingestion.
  - Scores come from the evaluation script as a small JSON document.

ARCHITECTURE INTEGRATION:
  - Used by: internal/experiment, internal/output, internal/registry
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Use time.Time for timestamps; formatting belongs to the writers.

USAGE:
  rec := model.RunRecord{ModelType: "features", Sequence: 3}

SELF-HEALING INSTRUCTIONS:
  - If the evaluation script grows new score fields, extend Scores and the
    summary writer together.

RELATED FILES:
  - internal/output/summary.go
  - internal/registry/registry.go

MAINTENANCE:
  - Update when the run lifecycle gains new states.
*/

package model

import (
	"fmt"
	"time"
)

// Split selects which dataset the prediction and evaluation stages target.
type Split string

const (
	SplitDev  Split = "dev"
	SplitTest Split = "test"
)

// ParseSplit maps the optional trailing CLI token to a split.
// Only the literal "test" opts into the test set; anything else
// (including nothing) is dev.
func ParseSplit(token string) Split {
	if token == "test" {
		return SplitTest
	}
	return SplitDev
}

// Run statuses as stored in the registry and runs.jsonl.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Stage names, in pipeline order.
const (
	StageTrain    = "train"
	StagePredict  = "predict"
	StageEvaluate = "evaluate"
)

// Scores is the machine-readable output of the evaluation stage
// (scores.json in the experiment folder). Precision, recall and F1
// are macro-averaged over the label set.
type Scores struct {
	Name      string  `json:"name"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// RunRecord is the full account of one experiment run.
type RunRecord struct {
	ModelType  string    `json:"model_type"`
	Sequence   int       `json:"sequence"`
	Folder     string    `json:"folder"`
	Split      Split     `json:"split"`
	Status     string    `json:"status"`
	FailedAt   string    `json:"failed_at,omitempty"` // stage name, when Status == failed
	Scores     *Scores   `json:"scores,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// Name returns the canonical "<model_type>-<sequence>" run identifier,
// which is also the experiment folder's base name.
func (r RunRecord) Name() string {
	return RunName(r.ModelType, r.Sequence)
}

// RunName formats the folder base name for a (model type, sequence) pair.
func RunName(modelType string, sequence int) string {
	return fmt.Sprintf("%s-%d", modelType, sequence)
}
