package sql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	getQuery = `SELECT value FROM rate_cache WHERE key = $1 AND expires_at > $2`

	stageQuery = `INSERT INTO rate_cache_pending (key, value, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`

	commitQuery = `INSERT INTO rate_cache (key, value, expires_at)
SELECT key, value, expires_at FROM rate_cache_pending WHERE key = $1
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`

	clearPendingQuery = `DELETE FROM rate_cache_pending WHERE key = $1`

	deleteQuery = `DELETE FROM rate_cache WHERE key = $1`

	purgeQuery = `DELETE FROM rate_cache WHERE expires_at <= $1`
)

// DB is the subset of the pgx connection API used by the storage
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Storage is a Postgres-backed rate store
type Storage struct {
	db  DB
	now func() time.Time
}

func NewStorage(db DB) *Storage {
	return &Storage{
		db:  db,
		now: time.Now,
	}
}

func (s *Storage) Get(ctx context.Context, key string) (float64, bool, error) {
	var value float64

	if err := s.db.QueryRow(ctx, getQuery, key, timeToTimestamp(s.now())).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("unable to fetch cached rate: %w", err)
	}

	return value, true, nil
}

// Set stages the entry in the pending table and commits it into the
// cache table within a single transaction
func (s *Storage) Set(ctx context.Context, key string, value float64, ttl time.Duration) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	expiresAt := timeToTimestamp(s.now().Add(ttl))

	if _, err = tx.Exec(ctx, stageQuery, key, value, expiresAt); err != nil {
		return fmt.Errorf("unable to stage cached rate: %w", err)
	}

	if _, err = tx.Exec(ctx, commitQuery, key); err != nil {
		return fmt.Errorf("unable to commit cached rate: %w", err)
	}

	if _, err = tx.Exec(ctx, clearPendingQuery, key); err != nil {
		return fmt.Errorf("unable to clear staged rate: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("unable to commit transaction: %w", err)
	}

	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if _, err := s.db.Exec(ctx, deleteQuery, key); err != nil {
		return fmt.Errorf("unable to delete cached rate: %w", err)
	}

	return nil
}

// Purge removes all expired entries, returning how many were removed
func (s *Storage) Purge(ctx context.Context) (int, error) {
	tag, err := s.db.Exec(ctx, purgeQuery, timeToTimestamp(s.now()))
	if err != nil {
		return 0, fmt.Errorf("unable to purge cached rates: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// timeToTimestamp normalizes the time value for timestamptz columns
func timeToTimestamp(t time.Time) time.Time {
	return t.UTC()
}
