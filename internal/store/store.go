// Package store persists run history in a local SQLite database so
// past verdicts survive across invocations and feed the history and
// serve commands.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"scenic/internal/runner"
)

// Store is the run-history database.
type Store struct {
	db *sql.DB
}

// RunSummary is one row of the history listing.
type RunSummary struct {
	ID        string
	Timestamp time.Time
	Totals    runner.Totals
}

// Open creates the database file (and parent directories) if needed
// and initializes the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT NOT NULL PRIMARY KEY,
	started_at TEXT NOT NULL,
	total INTEGER NOT NULL,
	passed INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	errors INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS verdicts (
	run_id TEXT NOT NULL REFERENCES runs(id),
	seq INTEGER NOT NULL,
	scenario TEXT NOT NULL,
	status TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL,
	screenshot TEXT NOT NULL DEFAULT '',
	PRIMARY KEY(run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("initialize run history schema: %w", err)
	}
	return nil
}

// SaveReport records a finished run and its verdicts atomically.
func (s *Store) SaveReport(ctx context.Context, rep *runner.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run insert transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, total, passed, failed, errors) VALUES (?, ?, ?, ?, ?, ?)`,
		rep.ID,
		rep.Timestamp.UTC().Format(time.RFC3339Nano),
		rep.Totals.Total,
		rep.Totals.Passed,
		rep.Totals.Failed,
		rep.Totals.Errors,
	); err != nil {
		return fmt.Errorf("insert run %q: %w", rep.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO verdicts (run_id, seq, scenario, status, detail, duration_ms, screenshot) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare verdict insert: %w", err)
	}
	defer stmt.Close()

	for i, v := range rep.Verdicts {
		if _, err := stmt.ExecContext(ctx, rep.ID, i, v.ScenarioName, string(v.Status), v.Detail, v.DurationMs, v.ScreenshotPath); err != nil {
			return fmt.Errorf("insert verdict %q: %w", v.ScenarioName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run insert transaction: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, total, passed, failed, errors FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	out := make([]RunSummary, 0, limit)
	for rows.Next() {
		var r RunSummary
		var startedAt string
		if err := rows.Scan(&r.ID, &startedAt, &r.Totals.Total, &r.Totals.Passed, &r.Totals.Failed, &r.Totals.Errors); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.Timestamp, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("decode run %q timestamp: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return out, nil
}

// GetReport reloads a stored run with its verdicts in execution order.
func (s *Store) GetReport(ctx context.Context, runID string) (*runner.Report, error) {
	rep := &runner.Report{ID: runID}
	var startedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT started_at, total, passed, failed, errors FROM runs WHERE id = ?`, runID).
		Scan(&startedAt, &rep.Totals.Total, &rep.Totals.Passed, &rep.Totals.Failed, &rep.Totals.Errors)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %q not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query run %q: %w", runID, err)
	}
	rep.Timestamp, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("decode run %q timestamp: %w", runID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT scenario, status, detail, duration_ms, screenshot FROM verdicts WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query verdicts for run %q: %w", runID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var v runner.Verdict
		var status string
		if err := rows.Scan(&v.ScenarioName, &status, &v.Detail, &v.DurationMs, &v.ScreenshotPath); err != nil {
			return nil, fmt.Errorf("scan verdict row: %w", err)
		}
		v.Status = runner.Status(status)
		rep.Verdicts = append(rep.Verdicts, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verdicts: %w", err)
	}
	return rep, nil
}
