/*
PURPOSE:
  Appends run records to a JSON Lines log (results/runs.jsonl).
  Optimized for machine parsing across all model types.

REQUIREMENTS:
  User-specified:
  - A cross-type machine-readable run history.

  Implementation-discovered:
  - JSON Lines is append-friendly; a single JSON array would force
    rewriting the whole file per run.

ARCHITECTURE INTEGRATION:
  - Called by: internal/experiment
  - Consumes: internal/model.RunRecord

ERROR HANDLING:
  - Returns error on file open or write failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - Open with O_APPEND; never truncate.
  - Thread-safe.

USAGE:
  w, err := output.OpenRunLog("./results")
  w.Write(record)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - None specific.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update if we switch to plain JSON array (not recommended for appending).
*/

package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/daryltucker/olid-runner/internal/model"
)

// RunLog handles appending run records to a JSON Lines file.
type RunLog struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// OpenRunLog opens (creating if necessary) results/runs.jsonl for appending.
func OpenRunLog(resultsDir string) (*RunLog, error) {
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory %s: %w", resultsDir, err)
	}

	path := filepath.Join(resultsDir, "runs.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &RunLog{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write appends a single run record as a JSON line.
func (rl *RunLog) Write(r model.RunRecord) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return rl.encoder.Encode(r)
}

// Close closes the underlying file.
func (rl *RunLog) Close() error {
	return rl.file.Close()
}
