// Package history keeps a SQLite record of finished async runs.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warpdl/warpmulti/pkg/pool"
	_ "modernc.org/sqlite"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history: store closed")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	pool_id   TEXT    NOT NULL,
	started   INTEGER NOT NULL,
	finished  INTEGER NOT NULL,
	advances  INTEGER NOT NULL,
	waits     INTEGER NOT NULL,
	transfers INTEGER NOT NULL,
	failed    INTEGER NOT NULL,
	bytes     INTEGER NOT NULL,
	error     TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_finished ON runs(finished);
`

// Run is one finished async run.
type Run struct {
	PoolID    uuid.UUID
	Started   time.Time
	Finished  time.Time
	Advances  int
	Waits     int
	Transfers int
	Failed    int
	Bytes     int64
	Error     string
}

// Duration is the wall time between start and finish.
func (r Run) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// FromCompletion builds a Run from a pool completion.
func FromCompletion(c pool.Completion) Run {
	r := Run{
		PoolID:    c.PoolID,
		Started:   c.Outcome.Started,
		Finished:  c.Outcome.Finished,
		Advances:  c.Outcome.Advances,
		Waits:     c.Outcome.Waits,
		Transfers: len(c.Results),
		Failed:    c.Failed(),
		Bytes:     c.Bytes(),
	}
	switch {
	case c.Outcome.Err != nil:
		r.Error = c.Outcome.Err.Error()
	case c.Outcome.Cancelled:
		r.Error = "cancelled"
	}
	return r
}

// Store is a run history database. It is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open history database: %w", err)
	}
	// a single connection keeps ":memory:" databases coherent
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error: cannot create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Record appends r.
func (s *Store) Record(ctx context.Context, r Run) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
        INSERT INTO runs (pool_id, started, finished, advances, waits, transfers, failed, bytes, error)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, r.PoolID.String(), r.Started.UnixNano(), r.Finished.UnixNano(),
		r.Advances, r.Waits, r.Transfers, r.Failed, r.Bytes, r.Error)
	if err != nil {
		return fmt.Errorf("error: failed to record run %s: %w", r.PoolID, err)
	}
	return nil
}

// List returns up to limit runs, most recent first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.QueryContext(ctx, `
        SELECT pool_id, started, finished, advances, waits, transfers, failed, bytes, error
        FROM runs
        ORDER BY finished DESC, id DESC
        LIMIT ?
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("error: failed to query history: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			id                string
			started, finished int64
			r                 Run
		)
		if err := rows.Scan(&id, &started, &finished, &r.Advances, &r.Waits, &r.Transfers, &r.Failed, &r.Bytes, &r.Error); err != nil {
			return nil, fmt.Errorf("error: failed to scan history row: %w", err)
		}
		if r.PoolID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("error: bad pool id %q in history: %w", id, err)
		}
		r.Started = time.Unix(0, started)
		r.Finished = time.Unix(0, finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error: failed to iterate history rows: %w", err)
	}
	return runs, nil
}

// Hook returns a pool completion hook that records each run. Failures go
// to onErr, which may be nil.
func (s *Store) Hook(onErr func(error)) func(pool.Completion) {
	return func(c pool.Completion) {
		if err := s.Record(context.Background(), FromCompletion(c)); err != nil && onErr != nil {
			onErr(err)
		}
	}
}

// Close closes the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}
