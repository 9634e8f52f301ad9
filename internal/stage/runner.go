/*
PURPOSE:
  Runs a single pipeline stage (train/predict/evaluate) as a blocking
  subprocess and translates its outcome into a typed error.

REQUIREMENTS:
  User-specified:
  - Stages run strictly one after another; a non-zero exit halts the run.
  - Stage output must reach the terminal untouched (training progress bars,
    stack traces).

  Implementation-discovered:
  - Needs context support so a per-stage timeout can be configured; the
    default stays unbounded because training has no useful time limit.
  - The stage's working directory must be the experiment folder so the
    scripts' relative paths resolve against their own copies.

ARCHITECTURE INTEGRATION:
  - Called by: internal/experiment (dispatcher)
  - Uses: os/exec, internal/output

ERROR HANDLING:
  - StageError carries the stage name and exit code; errors.As-able.
  - Context expiry is reported as the stage timing out, not a bare kill.

IMPLEMENTATION RULES:
  - exec.CommandContext; inherit stdout/stderr; set cmd.Dir.
  - Never retry. A failed stage leaves the folder for postmortem.

USAGE:
  r := stage.NewRunner("python3", 0)
  err := r.Run(ctx, stage.Invocation{Name: "train", Script: "...", Dir: folder})

SELF-HEALING INSTRUCTIONS:
  - If a stage hangs forever, set stage_timeout in the config.

RELATED FILES:
  - internal/experiment/dispatcher.go

MAINTENANCE:
  - Update if stages ever need captured (rather than inherited) output.
*/

package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/daryltucker/olid-runner/internal/output"
)

// Invocation describes one stage subprocess.
type Invocation struct {
	// Name labels the stage in logs and errors ("train", "predict", ...).
	Name string
	// Script is the path of the script to execute.
	Script string
	// Args follow the script on the command line.
	Args []string
	// Dir is the working directory (the experiment folder).
	Dir string
}

// StageError reports a stage that exited non-zero or could not start.
type StageError struct {
	Stage    string
	ExitCode int
	Err      error
}

func (e *StageError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("stage %s failed with exit code %d", e.Stage, e.ExitCode)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Runner executes stage subprocesses with a fixed interpreter.
type Runner interface {
	Run(ctx context.Context, inv Invocation) error
}

// ExecRunner is the real Runner backed by os/exec.
type ExecRunner struct {
	Interpreter string
	Timeout     time.Duration
}

// NewRunner creates an ExecRunner. timeout == 0 means unbounded stages.
func NewRunner(interpreter string, timeout time.Duration) *ExecRunner {
	return &ExecRunner{Interpreter: interpreter, Timeout: timeout}
}

// Run executes the invocation and blocks until it finishes.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := append([]string{inv.Script}, inv.Args...)
	cmd := exec.CommandContext(ctx, r.Interpreter, args...)
	cmd.Dir = inv.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	output.Logger.Info("Running stage", "stage", inv.Name, "script", inv.Script)

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return &StageError{Stage: inv.Name, Err: fmt.Errorf("timed out after %s: %w", elapsed.Round(time.Second), ctx.Err())}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &StageError{Stage: inv.Name, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return &StageError{Stage: inv.Name, Err: err}
	}

	output.Logger.Info("Stage complete", "stage", inv.Name, "duration", elapsed)
	return nil
}
