// Package journal keeps an audit trail of analysis attempts in SQLite: one
// row per invocation of the completion service, successful or not. Records
// themselves live in the file store; the journal only answers "what ran,
// when, and how did it go".
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome values for a journal entry.
const (
	OutcomeOK        = "ok"
	OutcomeUpstream  = "upstream_error"
	OutcomeMalformed = "malformed_response"
)

// Entry is one analysis attempt.
type Entry struct {
	ID         string    `json:"id"`
	Date       string    `json:"date"` // record date, YYYY-MM-DD
	Model      string    `json:"model"`
	DurationMs int64     `json:"duration_ms"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Journal wraps the SQLite database holding analysis attempts.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database in dataDir and ensures its
// schema. Pass ":memory:" as dataDir for an in-memory journal (used by tests).
func Open(dataDir string) (*Journal, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "journal.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging journal database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS analysis_attempts (
		id          TEXT PRIMARY KEY,
		record_date TEXT NOT NULL,
		model       TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome     TEXT NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		created_at  DATETIME NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating analysis_attempts table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record inserts one analysis attempt.
func (j *Journal) Record(e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := j.db.Exec(
		`INSERT INTO analysis_attempts (id, record_date, model, duration_ms, outcome, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date, e.Model, e.DurationMs, e.Outcome, e.Error, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording analysis attempt: %w", err)
	}
	return nil
}

// Recent returns the most recent attempts, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.Query(
		`SELECT id, record_date, model, duration_ms, outcome, error, created_at
		 FROM analysis_attempts ORDER BY created_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying analysis attempts: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Date, &e.Model, &e.DurationMs, &e.Outcome, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning analysis attempt: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
