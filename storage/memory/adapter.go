package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	expiresAt time.Time
	value     float64
}

// Storage is an in-process rate store.
// Writes land in a pending bucket and are committed to the live bucket
// under the same lock, so readers only ever observe committed entries
type Storage struct {
	now func() time.Time

	data    map[string]entry
	pending map[string]entry

	mu sync.RWMutex
}

type Option func(s *Storage)

// WithClock specifies the time source used for expiry checks
func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

func NewStorage(opts ...Option) *Storage {
	s := &Storage{
		now:     time.Now,
		data:    make(map[string]entry),
		pending: make(map[string]entry),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Storage) Get(_ context.Context, key string) (float64, bool, error) {
	s.mu.RLock()
	e, ok := s.data[key]
	s.mu.RUnlock()

	if !ok || !s.now().Before(e.expiresAt) {
		return 0, false, nil
	}

	return e.value, true, nil
}

func (s *Storage) Set(_ context.Context, key string, value float64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[key] = entry{
		value:     value,
		expiresAt: s.now().Add(ttl),
	}

	s.commit()

	return nil
}

// commit moves all staged entries into the live bucket.
// Must be called with the write lock held
func (s *Storage) commit() {
	for k, e := range s.pending {
		s.data[k] = e

		delete(s.pending, k)
	}
}

func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	return nil
}

// Purge removes all expired entries, returning how many were removed
func (s *Storage) Purge(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0

	for k, e := range s.data {
		if !now.Before(e.expiresAt) {
			delete(s.data, k)

			removed++
		}
	}

	return removed, nil
}
