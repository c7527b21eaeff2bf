package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const pendingPrefix = "pending:"

// Storage is a Redis-backed rate store. Expiry is delegated to Redis
type Storage struct {
	client redis.UniversalClient
	prefix string
}

type Option func(s *Storage)

// WithPrefix specifies the namespace prepended to all keys
func WithPrefix(prefix string) Option {
	return func(s *Storage) {
		s.prefix = prefix
	}
}

func NewStorage(client redis.UniversalClient, opts ...Option) *Storage {
	s := &Storage{
		client: client,
		prefix: "cbrates:",
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// liveKey returns the namespaced key of the committed value.
// The key is wrapped in a hash tag, so the live and pending keys
// of one entry share a cluster slot
func (s *Storage) liveKey(key string) string {
	return s.prefix + "{" + key + "}"
}

// pendingKey returns the namespaced key the value is staged under
func (s *Storage) pendingKey(key string) string {
	return s.prefix + pendingPrefix + "{" + key + "}"
}

func (s *Storage) Get(ctx context.Context, key string) (float64, bool, error) {
	v, err := s.client.Get(ctx, s.liveKey(key)).Float64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("unable to read %q: %w", key, err)
	}

	return v, true, nil
}

// Set stages the value under a pending key and renames it onto the live key
// inside a single MULTI/EXEC block. RENAME carries the TTL over
func (s *Storage) Set(ctx context.Context, key string, value float64, ttl time.Duration) error {
	var (
		live    = s.liveKey(key)
		pending = s.pendingKey(key)
	)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, pending, value, ttl)
		pipe.Rename(ctx, pending, live)

		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to write %q: %w", key, err)
	}

	return nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.liveKey(key)).Err(); err != nil {
		return fmt.Errorf("unable to delete %q: %w", key, err)
	}

	return nil
}

// Close closes the underlying client
func (s *Storage) Close() error {
	return s.client.Close()
}
