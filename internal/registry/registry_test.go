package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/daryltucker/olid-runner/internal/model"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	return reg
}

func testRecord(modelType string, seq int, started time.Time) model.RunRecord {
	return model.RunRecord{
		ModelType:  modelType,
		Sequence:   seq,
		Folder:     "/experiments/" + model.RunName(modelType, seq),
		Split:      model.SplitDev,
		Status:     model.StatusCompleted,
		Scores:     &model.Scores{Name: modelType, Accuracy: 0.9, Precision: 0.85, Recall: 0.84, F1: 0.845},
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
}

func TestRegistry_RecordAndList(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := reg.Record(ctx, testRecord("features", i, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Record #%d: %v", i, err)
		}
	}

	runs, err := reg.List(ctx, "features", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("runs: got %d, want 3", len(runs))
	}

	// Newest first.
	if runs[0].Sequence != 2 || runs[2].Sequence != 0 {
		t.Fatalf("ordering: got sequences %d, %d, %d", runs[0].Sequence, runs[1].Sequence, runs[2].Sequence)
	}

	got := runs[0]
	if got.ModelType != "features" || got.Status != model.StatusCompleted {
		t.Fatalf("record round trip: %+v", got)
	}
	if got.Scores == nil || got.Scores.F1 != 0.845 {
		t.Fatalf("scores round trip: %+v", got.Scores)
	}
}

func TestRegistry_FilterByTypeAndLimit(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if err := reg.Record(ctx, testRecord("features", i, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Record features: %v", err)
		}
		if err := reg.Record(ctx, testRecord("lstm", i, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Record lstm: %v", err)
		}
	}

	lstm, err := reg.List(ctx, "lstm", 0)
	if err != nil {
		t.Fatalf("List lstm: %v", err)
	}
	if len(lstm) != 2 {
		t.Fatalf("lstm runs: got %d, want 2", len(lstm))
	}
	for _, r := range lstm {
		if r.ModelType != "lstm" {
			t.Fatalf("filter leaked %s run", r.ModelType)
		}
	}

	limited, err := reg.List(ctx, "", 1)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited runs: got %d, want 1", len(limited))
	}
}

func TestRegistry_FailedRunWithoutScores(t *testing.T) {
	reg := openTestRegistry(t)
	ctx := context.Background()

	rec := testRecord("plm", 0, time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	rec.Status = model.StatusFailed
	rec.FailedAt = model.StageTrain
	rec.Scores = nil
	rec.Error = "stage train failed with exit code 1"

	if err := reg.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := reg.List(ctx, "plm", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs: got %d, want 1", len(runs))
	}

	got := runs[0]
	if got.Status != model.StatusFailed || got.FailedAt != model.StageTrain {
		t.Fatalf("failure fields lost: %+v", got)
	}
	if got.Scores != nil {
		t.Fatalf("scoreless run grew scores: %+v", got.Scores)
	}
	if got.Error == "" {
		t.Fatal("error message lost")
	}
}

func TestRegistry_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	reg, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := reg.Record(ctx, testRecord("features", 0, time.Now())); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reg, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reg.Close()

	runs, err := reg.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs after reopen: got %d, want 1", len(runs))
	}
}
