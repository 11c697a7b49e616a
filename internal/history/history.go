// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history keeps a SQLite log of download attempts across runs.
// The ledger holds the current lifecycle state of each edition; history
// answers "what happened when", including attempts the ledger has since
// resolved.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/bookbatch/pkg/types"
)

const dbFile = "history.db"

// Store manages the attempt history database.
type Store struct {
	db    *sql.DB
	runID string
}

// Attempt is one recorded download attempt.
type Attempt struct {
	RunID       string
	WorkID      string
	ContentHash string
	Title       string
	Outcome     string
	Detail      string
	CreatedAt   time.Time
}

// NewStore opens or creates the history database at dir/history.db and
// starts a new run. The run id groups this process's attempts.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	s := &Store{
		db:    db,
		runID: time.Now().UTC().Format("run-20060102-150405"),
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunID returns the identifier of the current run.
func (s *Store) RunID() string {
	return s.runID
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS attempts (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			work_id TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			title TEXT,
			outcome TEXT NOT NULL,
			detail TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_run ON attempts(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_outcome ON attempts(outcome)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_work ON attempts(work_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record appends one attempt outcome for the current run.
func (s *Store) Record(e types.Edition, outcome, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO attempts (run_id, work_id, content_hash, title, outcome, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.runID, e.WorkID, e.ContentHash, e.Title, outcome, detail,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("recording attempt: %w", err)
	}
	return nil
}

// Summary returns attempt counts per outcome across all runs.
func (s *Store) Summary(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT outcome, count(*) FROM attempts GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("querying summary: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scanning summary row: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

// RecentFailures returns the most recent failed attempts, newest first.
func (s *Store) RecentFailures(ctx context.Context, limit int) ([]Attempt, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, work_id, content_hash, title, outcome, detail, created_at
		 FROM attempts WHERE outcome = 'failed'
		 ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying failures: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		var created string
		if err := rows.Scan(&a.RunID, &a.WorkID, &a.ContentHash, &a.Title, &a.Outcome, &a.Detail, &created); err != nil {
			return nil, fmt.Errorf("scanning attempt row: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, created); perr == nil {
			a.CreatedAt = t
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
