/*
PURPOSE:
  Appends run scores to the shared per-model-type results summary CSV.
  One row per run; earlier runs are never rewritten.

REQUIREMENTS:
  User-specified:
  - A results file per model type, accumulating scores across runs.

  Implementation-discovered:
  - The evaluation script emits scores as a single comma-joined line, which
    only makes sense as an append payload. We append, and own the header.
  - Flush after every write (the harness may die mid-run).

ARCHITECTURE INTEGRATION:
  - Called by: internal/experiment
  - Consumes: internal/model.Scores / RunRecord

ERROR HANDLING:
  - Returns error on file open or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Open with O_APPEND; write the header only when creating the file.
  - Use Mutex so a future parallel runner cannot interleave rows.

USAGE:
  w, err := output.OpenSummary("./results", "features")
  w.Append(record)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - If the score set changes, update summaryHeader and Append together.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update Append() mapping when Scores changes.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/daryltucker/olid-runner/internal/model"
)

var summaryHeader = []string{
	"run", "split", "timestamp", "accuracy", "precision", "recall", "f1",
}

// SummaryWriter appends score rows to results/<model_type>.csv.
type SummaryWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// OpenSummary opens (creating if necessary) the summary file for a model
// type. A freshly created file gets the header row immediately.
func OpenSummary(resultsDir, modelType string) (*SummaryWriter, error) {
	if err := os.MkdirAll(resultsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create results directory %s: %w", resultsDir, err)
	}

	path := filepath.Join(resultsDir, modelType+".csv")

	info, err := os.Stat(path)
	fresh := err != nil || info.Size() == 0

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)

	if fresh {
		if err := w.Write(summaryHeader); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &SummaryWriter{
		file:   f,
		writer: w,
	}, nil
}

// Append writes one run's scores as a CSV row.
// It is thread-safe.
func (sw *SummaryWriter) Append(r model.RunRecord) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if r.Scores == nil {
		return fmt.Errorf("run %s has no scores to summarize", r.Name())
	}

	record := []string{
		r.Name(),
		string(r.Split),
		r.FinishedAt.Format("2006-01-02T15:04:05Z07:00"),
		fmt.Sprintf("%.4f", r.Scores.Accuracy),
		fmt.Sprintf("%.4f", r.Scores.Precision),
		fmt.Sprintf("%.4f", r.Scores.Recall),
		fmt.Sprintf("%.4f", r.Scores.F1),
	}

	if err := sw.writer.Write(record); err != nil {
		return err
	}
	sw.writer.Flush()
	return sw.writer.Error()
}

// Close closes the underlying file.
func (sw *SummaryWriter) Close() error {
	sw.writer.Flush()
	return sw.file.Close()
}
