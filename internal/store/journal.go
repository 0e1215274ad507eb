// Package store keeps a journal of workflow runs for the current process.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/rahul/gdforge/internal/plan"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one journaled workflow invocation.
type Run struct {
	ID          string
	Prompt      string
	Status      string
	Attempts    int
	Corrections int
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Attempt is one plan execution within a run.
type Attempt struct {
	RunID       string
	Number      int
	Plan        string
	FailedIndex int // -1 when the attempt succeeded
	Reason      string
}

type Journal struct {
	DB  *sql.DB
	now func() time.Time
}

// NewJournal opens the journal database. ":memory:" keeps it in process
// memory only; a file path is meant for debugging.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT UNIQUE NOT NULL,
			prompt TEXT,
			status TEXT,
			attempts INTEGER DEFAULT 0,
			corrections INTEGER DEFAULT 0,
			error TEXT DEFAULT '',
			started_at TEXT,
			finished_at TEXT DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS attempts (
			run_id TEXT NOT NULL,
			attempt INTEGER NOT NULL,
			plan TEXT,
			failed_index INTEGER,
			reason TEXT,
			PRIMARY KEY (run_id, attempt)
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Journal{DB: db, now: time.Now}, nil
}

func (j *Journal) Close() error {
	return j.DB.Close()
}

func (j *Journal) StartRun(runID, prompt string) error {
	query := `INSERT INTO runs (id, prompt, status, started_at) VALUES (?, ?, ?, ?)`
	_, err := j.DB.Exec(query, runID, prompt, StatusRunning, j.timestamp())
	return err
}

func (j *Journal) RecordAttempt(runID string, attempt int, p plan.Plan, failure *plan.Failure) error {
	failedIndex, reason := -1, ""
	if failure != nil {
		failedIndex, reason = failure.Index, failure.Reason
	}
	query := `INSERT INTO attempts (run_id, attempt, plan, failed_index, reason) VALUES (?, ?, ?, ?, ?)`
	_, err := j.DB.Exec(query, runID, attempt, p.JSON(), failedIndex, reason)
	return err
}

func (j *Journal) FinishRun(runID string, attempts, corrections int, runErr error) error {
	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	query := `UPDATE runs SET status = ?, attempts = ?, corrections = ?, error = ?, finished_at = ? WHERE id = ?`
	res, err := j.DB.Exec(query, status, attempts, corrections, msg, j.timestamp(), runID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s not started", runID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (j *Journal) RecentRuns(limit int) ([]Run, error) {
	query := `SELECT id, prompt, status, attempts, corrections, error, started_at, finished_at
		FROM runs ORDER BY seq DESC LIMIT ?`
	rows, err := j.DB.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Prompt, &r.Status, &r.Attempts, &r.Corrections, &r.Error, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = parseTimestamp(started)
		r.FinishedAt = parseTimestamp(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns a single run by id.
func (j *Journal) Run(runID string) (Run, error) {
	query := `SELECT id, prompt, status, attempts, corrections, error, started_at, finished_at FROM runs WHERE id = ?`
	var r Run
	var started, finished string
	err := j.DB.QueryRow(query, runID).Scan(&r.ID, &r.Prompt, &r.Status, &r.Attempts, &r.Corrections, &r.Error, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = parseTimestamp(started)
	r.FinishedAt = parseTimestamp(finished)
	return r, nil
}

// Attempts returns the attempts of a run in execution order.
func (j *Journal) Attempts(runID string) ([]Attempt, error) {
	query := `SELECT run_id, attempt, plan, failed_index, reason FROM attempts WHERE run_id = ? ORDER BY attempt`
	rows, err := j.DB.Query(query, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.RunID, &a.Number, &a.Plan, &a.FailedIndex, &a.Reason); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (j *Journal) timestamp() string {
	return j.now().UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
