package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	// PendingBucket holds staged writes until they are committed
	PendingBucket = []byte("PendingRates")

	// RatesBucket holds committed, readable rates
	RatesBucket = []byte("Rates")
)

type entry struct {
	ExpiresAt time.Time `json:"expires_at"`
	Value     float64   `json:"value"`
}

// Storage is a bbolt file-backed rate store
type Storage struct {
	db  *bbolt.DB
	now func() time.Time
}

type Option func(s *Storage)

// WithClock specifies the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

// Open opens (or creates) the bbolt database at the given path
func Open(path string, opts ...Option) (*Storage, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second * 5})
	if err != nil {
		return nil, fmt.Errorf("unable to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bn := range [][]byte{PendingBucket, RatesBucket} {
			if _, err := tx.CreateBucketIfNotExists(bn); err != nil {
				return fmt.Errorf("unable to create bucket %s: %w", string(bn), err)
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	s := &Storage{
		db:  db,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) Get(_ context.Context, key string) (float64, bool, error) {
	var (
		e     entry
		found bool
	)

	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(RatesBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}

		if err := json.Unmarshal(raw, &e); err != nil {
			return fmt.Errorf("unable to decode entry %q: %w", key, err)
		}

		found = true

		return nil
	})
	if err != nil {
		return 0, false, err
	}

	if !found || !s.now().Before(e.ExpiresAt) {
		return 0, false, nil
	}

	return e.Value, true, nil
}

// Set stages the entry in the pending bucket and commits it into the
// rates bucket within a single transaction
func (s *Storage) Set(_ context.Context, key string, value float64, ttl time.Duration) error {
	raw, err := json.Marshal(entry{
		Value:     value,
		ExpiresAt: s.now().Add(ttl).UTC(),
	})
	if err != nil {
		return fmt.Errorf("unable to encode entry: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		var (
			k       = []byte(key)
			pending = tx.Bucket(PendingBucket)
		)

		if err := pending.Put(k, raw); err != nil {
			return fmt.Errorf("unable to stage entry %q: %w", key, err)
		}

		staged := append([]byte(nil), pending.Get(k)...)

		if err := tx.Bucket(RatesBucket).Put(k, staged); err != nil {
			return fmt.Errorf("unable to commit entry %q: %w", key, err)
		}

		return pending.Delete(k)
	})
}

func (s *Storage) Delete(_ context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(RatesBucket).Delete([]byte(key))
	})
}

// Purge removes all expired entries, returning how many were removed
func (s *Storage) Purge(_ context.Context) (int, error) {
	now := s.now()
	removed := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		var (
			b       = tx.Bucket(RatesBucket)
			expired [][]byte
		)

		err := b.ForEach(func(k, v []byte) error {
			var e entry

			if err := json.Unmarshal(v, &e); err != nil || !now.Before(e.ExpiresAt) {
				expired = append(expired, append([]byte(nil), k...))
			}

			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		removed = len(expired)

		return nil
	})

	return removed, err
}
