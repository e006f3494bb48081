// Package deadletter keeps a bounded record of jobs the worker dropped.
//
// The store is an optional extension: the worker writes to it after a job
// is abandoned and nothing ever re-enqueues from it automatically.
package deadletter

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/catindex/internal/catalog"
	"github.com/Aman-CERP/catindex/internal/jobs"
)

// Entry is one dropped job.
type Entry struct {
	ID       string       `json:"id"`
	Zone     string       `json:"zone"`
	Type     jobs.Type    `json:"job_type"`
	ItemKind catalog.Kind `json:"item_kind"`
	Path     string       `json:"path"`
	ItemID   int64        `json:"item_id,omitempty"`
	Attempts int          `json:"attempts"`
	Reason   string       `json:"reason"`
	FailedAt time.Time    `json:"failed_at"`
}

// Store is a SQLite-backed dead-letter table.
type Store struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	maxRows int
	closed  bool
	now     func() time.Time
}

// Open opens or creates the store at path. An empty path keeps the
// table in memory. maxRows bounds the table; zero disables pruning.
func Open(path string, maxRows int) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open dead-letter store: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	if path == "" {
		pragmas = pragmas[1:]
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db, path: path, maxRows: maxRows, now: time.Now}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS dead_jobs (
		seq       INTEGER PRIMARY KEY AUTOINCREMENT,
		id        TEXT NOT NULL,
		zone      TEXT NOT NULL,
		job_type  TEXT NOT NULL,
		item_kind TEXT NOT NULL,
		path      TEXT NOT NULL,
		item_id   INTEGER NOT NULL DEFAULT 0,
		attempts  INTEGER NOT NULL DEFAULT 0,
		reason    TEXT NOT NULL,
		failed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_dead_jobs_zone ON dead_jobs(zone);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a dropped job and prunes the table to maxRows.
func (s *Store) Record(ctx context.Context, j jobs.Job, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("dead-letter store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dead_jobs (id, zone, job_type, item_kind, path, item_id, attempts, reason, failed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Zone, string(j.Type), string(j.ItemKind), j.Path, j.ItemID, j.Attempts, reason,
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to record dead job %s: %w", j.ID, err)
	}

	if s.maxRows > 0 {
		if _, err := s.pruneLocked(ctx, s.maxRows); err != nil {
			return err
		}
	}
	return nil
}

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("dead-letter store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, zone, job_type, item_kind, path, item_id, attempts, reason, failed_at
		FROM dead_jobs ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead jobs: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			jobType  string
			kind     string
			failedAt string
		)
		if err := rows.Scan(&e.ID, &e.Zone, &jobType, &kind, &e.Path, &e.ItemID, &e.Attempts, &e.Reason, &failedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dead job: %w", err)
		}
		e.Type = jobs.Type(jobType)
		e.ItemKind = catalog.Kind(kind)
		e.FailedAt, _ = time.Parse(time.RFC3339Nano, failedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("dead-letter store is closed")
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_jobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count dead jobs: %w", err)
	}
	return n, nil
}

// Prune keeps the newest maxRows entries and returns how many it removed.
func (s *Store) Prune(ctx context.Context, maxRows int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fmt.Errorf("dead-letter store is closed")
	}
	return s.pruneLocked(ctx, maxRows)
}

func (s *Store) pruneLocked(ctx context.Context, maxRows int) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM dead_jobs WHERE seq NOT IN (
			SELECT seq FROM dead_jobs ORDER BY seq DESC LIMIT ?
		)`, maxRows)
	if err != nil {
		return 0, fmt.Errorf("failed to prune dead jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Path returns the database file, empty for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
