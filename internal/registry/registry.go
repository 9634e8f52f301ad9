/*
PURPOSE:
  Persists every experiment run into a SQLite registry so run history
  survives folder cleanups and can be queried without walking the tree.

REQUIREMENTS:
  User-specified:
  - Record (model type, sequence, split, folder, status, scores, times).
  - Power the `history` CLI command.

  Implementation-discovered:
  - WAL + busy_timeout pragmas keep concurrent readers from tripping over
    a writer; modernc.org/sqlite needs no cgo.
  - The registry is advisory: folder numbering authority stays with the
    filesystem scan, and a registry failure must never fail a run.

ARCHITECTURE INTEGRATION:
  - Called by: internal/experiment (as a RunSink), internal/cli (history)
  - Dependencies: modernc.org/sqlite, github.com/Masterminds/squirrel

ERROR HANDLING:
  - Open errors are returned; the CLI downgrades them to a warning.
  - Record/List errors wrap the failing statement.

IMPLEMENTATION RULES:
  - database/sql only; no ORM.
  - Squirrel for statement building (placeholders stay in one place).

USAGE:
  reg, err := registry.Open("./results/runs.db")
  defer reg.Close()
  reg.Record(ctx, rec)
  runs, err := reg.List(ctx, "features", 20)

SELF-HEALING INSTRUCTIONS:
  - A corrupt runs.db can simply be deleted; it is derived data.

RELATED FILES:
  - internal/model/types.go
  - internal/cli/history.go

MAINTENANCE:
  - Migrate with CREATE TABLE IF NOT EXISTS additions only; no versioning
    machinery for a single-table advisory store.
*/

package registry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/daryltucker/olid-runner/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	model_type TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	folder TEXT NOT NULL,
	split TEXT NOT NULL,
	status TEXT NOT NULL,
	failed_at TEXT NOT NULL DEFAULT '',
	accuracy REAL,
	precision REAL,
	recall REAL,
	f1 REAL,
	started_at INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_type_seq ON runs(model_type, sequence);
`

// Registry stores run records in SQLite.
type Registry struct {
	db *sql.DB
}

// Open opens (creating if necessary) the registry at path and applies the
// schema. Parent directories are created as needed.
func Open(path string) (*Registry, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("registry: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("registry: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("registry: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry: schema: %w", err)
	}

	return &Registry{db: db}, nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

// Record inserts one run record. Satisfies experiment.RunSink.
func (r *Registry) Record(ctx context.Context, rec model.RunRecord) error {
	var acc, prec, recall, f1 interface{}
	if rec.Scores != nil {
		acc, prec, recall, f1 = rec.Scores.Accuracy, rec.Scores.Precision, rec.Scores.Recall, rec.Scores.F1
	}

	query, args, err := sq.Insert("runs").
		Columns("model_type", "sequence", "folder", "split", "status", "failed_at",
			"accuracy", "precision", "recall", "f1", "started_at", "finished_at", "error").
		Values(rec.ModelType, rec.Sequence, rec.Folder, string(rec.Split), rec.Status, rec.FailedAt,
			acc, prec, recall, f1, rec.StartedAt.Unix(), rec.FinishedAt.Unix(), rec.Error).
		ToSql()
	if err != nil {
		return fmt.Errorf("registry: build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("registry: insert run %s: %w", rec.Name(), err)
	}
	return nil
}

// List returns the most recent runs, newest first. modelType == ""
// returns runs of every type; limit <= 0 means no limit.
func (r *Registry) List(ctx context.Context, modelType string, limit int) ([]model.RunRecord, error) {
	b := sq.Select("model_type", "sequence", "folder", "split", "status", "failed_at",
		"accuracy", "precision", "recall", "f1", "started_at", "finished_at", "error").
		From("runs").
		OrderBy("started_at DESC", "id DESC")

	if modelType != "" {
		b = b.Where(sq.Eq{"model_type": modelType})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("registry: build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: list runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var split string
		var acc, prec, recall, f1 sql.NullFloat64
		var started, finished int64

		if err := rows.Scan(&rec.ModelType, &rec.Sequence, &rec.Folder, &split, &rec.Status, &rec.FailedAt,
			&acc, &prec, &recall, &f1, &started, &finished, &rec.Error); err != nil {
			return nil, fmt.Errorf("registry: scan run: %w", err)
		}

		rec.Split = model.Split(split)
		rec.StartedAt = time.Unix(started, 0)
		rec.FinishedAt = time.Unix(finished, 0)
		if acc.Valid {
			rec.Scores = &model.Scores{
				Accuracy:  acc.Float64,
				Precision: prec.Float64,
				Recall:    recall.Float64,
				F1:        f1.Float64,
			}
		}

		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("registry: rows: %w", err)
	}
	return out, nil
}
