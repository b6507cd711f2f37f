package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gather-go/core"
	"gather-go/game"
)

// Run statuses.
const (
	StatusPlanning  = "planning"
	StatusPlanned   = "planned"
	StatusExecuting = "executing"
	StatusDone      = "done"
	StatusFailed    = "failed"
)

// ErrRunNotFound is returned when a run id is not in the index.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	Goal      core.Goal `json:"goal"`
	Heuristic string    `json:"heuristic"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Steps     int       `json:"steps"`
	Cost      float64   `json:"cost"`
	Expanded  int       `json:"expanded"`
	Generated int       `json:"generated"`
	Turns     int       `json:"turns"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunStore indexes planning runs, their plans and execution progress in SQLite.
type RunStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenRunStore opens (creating if needed) the run index at path.
func OpenRunStore(path string) (*RunStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &RunStore{db: db, now: time.Now}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			scenario TEXT NOT NULL,
			goal_gold INTEGER NOT NULL,
			goal_wood INTEGER NOT NULL,
			build_workers INTEGER NOT NULL,
			heuristic TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			steps INTEGER NOT NULL DEFAULT 0,
			cost REAL NOT NULL DEFAULT 0,
			expanded INTEGER NOT NULL DEFAULT 0,
			generated INTEGER NOT NULL DEFAULT 0,
			turns INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS plan_steps (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			line TEXT NOT NULL,
			PRIMARY KEY (run_id, idx)
		);`,
		`CREATE TABLE IF NOT EXISTS exec_events (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			turn INTEGER NOT NULL,
			step INTEGER NOT NULL,
			in_flight INTEGER NOT NULL,
			retries INTEGER NOT NULL,
			issued TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS exec_events_run ON exec_events(run_id, turn);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

// BeginRun records a new run in the planning state and returns its id.
func (s *RunStore) BeginRun(ctx context.Context, scenario string, goal core.Goal, heuristic string) (string, error) {
	id := uuid.NewString()
	now := s.stamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario, goal_gold, goal_wood, build_workers, heuristic, status, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, scenario, goal.Gold, goal.Wood, goal.BuildWorkers, heuristic, StatusPlanning, now, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}
	return id, nil
}

// RecordPlan stores the plan lines and search counters for a run.
func (s *RunStore) RecordPlan(ctx context.Context, runID string, plan *game.Plan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs SET status=?, steps=?, cost=?, expanded=?, generated=?, updated_at=? WHERE id=?`,
		StatusPlanned, plan.Len(), plan.Cost, plan.Expanded, plan.Generated, s.stamp(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_steps WHERE run_id=?`, runID); err != nil {
		return fmt.Errorf("failed to clear plan steps: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO plan_steps (run_id, idx, line) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare plan insert: %w", err)
	}
	defer stmt.Close()
	for i, line := range plan.Lines() {
		if _, err := stmt.ExecContext(ctx, runID, i, line); err != nil {
			return fmt.Errorf("failed to insert plan step %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// RecordProgress appends one executor progress event.
func (s *RunStore) RecordProgress(ctx context.Context, runID string, p game.Progress) error {
	issued, err := json.Marshal(p.Issued)
	if err != nil {
		return fmt.Errorf("failed to encode commands: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO exec_events (run_id, turn, step, in_flight, retries, issued) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, p.Turn, p.Step, p.InFlight, p.Retries, string(issued)); err != nil {
		return fmt.Errorf("failed to insert progress: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET status=?, turns=?, updated_at=? WHERE id=?`,
		StatusExecuting, p.Turn, s.stamp(), runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// FinishRun marks a run done, or failed when cause is non-nil.
func (s *RunStore) FinishRun(ctx context.Context, runID string, cause error) error {
	status, msg := StatusDone, ""
	if cause != nil {
		status, msg = StatusFailed, cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status=?, error=?, updated_at=? WHERE id=?`,
		status, msg, s.stamp(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, scenario, goal_gold, goal_wood, build_workers, heuristic, status, error,
	steps, cost, expanded, generated, turns, started_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*RunRecord, error) {
	var r RunRecord
	var started, updated string
	if err := row.Scan(&r.ID, &r.Scenario, &r.Goal.Gold, &r.Goal.Wood, &r.Goal.BuildWorkers,
		&r.Heuristic, &r.Status, &r.Error, &r.Steps, &r.Cost, &r.Expanded, &r.Generated,
		&r.Turns, &started, &updated); err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &r, nil
}

// Run returns one run by id.
func (s *RunStore) Run(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run: %w", err)
	}
	return r, nil
}

// Runs lists the most recent runs first, at most limit of them.
func (s *RunStore) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// PlanLines returns the stored plan of a run in step order.
func (s *RunStore) PlanLines(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT line FROM plan_steps WHERE run_id=? ORDER BY idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// ProgressCount returns how many progress events a run has recorded.
func (s *RunStore) ProgressCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM exec_events WHERE run_id=?`, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count progress: %w", err)
	}
	return n, nil
}
