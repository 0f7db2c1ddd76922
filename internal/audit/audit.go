// Package audit keeps a durable record of deactivation runs in a local
// SQLite database. Deactivation is destructive and the log output is
// ephemeral; the audit file is what an operator consults to answer "what
// did the run on Tuesday actually do".
package audit

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Recorder appends run records to the audit database.
type Recorder struct {
	db *sql.DB
}

// Open creates or opens the audit database at path and applies the
// schema. Safe to call on an existing database.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect audit database: %w", err)
	}

	// Single writer; the tool is sequential and SQLite returns
	// SQLITE_BUSY on concurrent writes otherwise.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}

	return &Recorder{db: db}, nil
}

// Close closes the database.
func (r *Recorder) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// BeginRun inserts a new run row and returns its ID.
func (r *Recorder) BeginRun(dryRun bool) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(`INSERT INTO runs (id, dry_run) VALUES (?, ?)`, id, dryRun)
	if err != nil {
		return "", fmt.Errorf("record run start: %w", err)
	}
	return id, nil
}

// RecordMatch appends one matched user to the run. Called once per match,
// including duplicate matches of the same user.
func (r *Recorder) RecordMatch(runID, userID, username string, status int) error {
	_, err := r.db.Exec(
		`INSERT INTO matches (run_id, user_id, username, status) VALUES (?, ?, ?, ?)`,
		runID, userID, username, status,
	)
	if err != nil {
		return fmt.Errorf("record match: %w", err)
	}
	return nil
}

// RecordDeactivation appends one applied status write to the run.
func (r *Recorder) RecordDeactivation(runID, userID, username string, oldStatus, newStatus int) error {
	_, err := r.db.Exec(
		`INSERT INTO deactivations (run_id, user_id, username, old_status, new_status) VALUES (?, ?, ?, ?, ?)`,
		runID, userID, username, oldStatus, newStatus,
	)
	if err != nil {
		return fmt.Errorf("record deactivation: %w", err)
	}
	return nil
}

// Run is one recorded run, as read back from the database.
type Run struct {
	ID             string
	StartedAt      string
	FinishedAt     string
	DryRun         bool
	DirectoryUsers int
	ActiveTargets  int
	Matched        int
}

// Runs returns all recorded runs, oldest first.
func (r *Recorder) Runs() ([]Run, error) {
	rows, err := r.db.Query(
		`SELECT id, started_at, COALESCE(finished_at, ''), dry_run,
		        COALESCE(directory_users, 0), COALESCE(active_targets, 0), COALESCE(matched, 0)
		 FROM runs ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.DryRun,
			&run.DirectoryUsers, &run.ActiveTargets, &run.Matched); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FinishRun stamps the run row with its final counts and finish time.
func (r *Recorder) FinishRun(runID string, directoryUsers, activeTargets, matched int) error {
	_, err := r.db.Exec(
		`UPDATE runs
		 SET finished_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now'),
		     directory_users = ?, active_targets = ?, matched = ?
		 WHERE id = ?`,
		directoryUsers, activeTargets, matched, runID,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}
