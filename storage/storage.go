package storage

import (
	"context"
	"time"
)

// Storage is an abstraction over a TTL-bounded rate store
type Storage interface {
	// Get fetches the live value stored under the key.
	// Expired entries are reported as missing
	Get(ctx context.Context, key string) (float64, bool, error)

	// Set stores the value under the key for the given TTL.
	// The write is staged and committed atomically relative to readers
	Set(ctx context.Context, key string, value float64, ttl time.Duration) error

	// Delete removes the value stored under the key, if any
	Delete(ctx context.Context, key string) error
}
