// Package cache implements the get-or-populate rate cache on top of a storage backend
package cache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sig-0/cbrates/metrics"
	"github.com/sig-0/cbrates/storage"
	"github.com/sig-0/cbrates/storage/types"
)

// DefaultTTL is the lifetime of a cached rate
const DefaultTTL = time.Hour

// ComputeFn produces the value for a missing key
type ComputeFn func(context.Context) (float64, error)

// RateCache is a TTL-bounded get-or-populate cache
type RateCache struct {
	storage storage.Storage
	logger  *slog.Logger
	metrics *metrics.Metrics

	group singleflight.Group
	ttl   time.Duration
}

// New creates a new rate cache over the given storage
func New(storage storage.Storage, opts ...Option) *RateCache {
	c := &RateCache{
		storage: storage,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		ttl:     DefaultTTL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Key derives the cache key for the given pair and date
func Key(currency, base types.Currency, date time.Time) string {
	return fmt.Sprintf("rate_%s_%s_%s", currency, base, date.Format("20060102"))
}

// GetOrCompute returns the live value for the key, or computes, stores and
// returns it. Compute failures are returned as-is and nothing is stored.
// Concurrent misses on the same key share a single compute, which is not
// cancelled when one of the waiting callers goes away
func (c *RateCache) GetOrCompute(ctx context.Context, key string, compute ComputeFn) (float64, error) {
	value, found, err := c.storage.Get(ctx, key)
	if err != nil {
		return 0, types.NewError(types.KindCache, fmt.Sprintf("unable to read %q", key), err)
	}

	// Rates are always positive, anything else is a corrupt entry
	if found && !(value > 0) {
		c.logger.Warn(
			"dropping corrupt cache entry",
			"key", key,
			"value", value,
		)

		if err := c.invalidate(ctx, key); err != nil {
			return 0, err
		}

		found = false
	}

	if found {
		c.metrics.CacheHit()
		c.logger.Debug("cache hit", "key", key)

		return value, nil
	}

	c.metrics.CacheMiss()
	c.logger.Debug("cache miss", "key", key)

	// The shared compute outlives any single caller's cancellation,
	// every caller waits on its own context
	resCh := c.group.DoChan(key, func() (any, error) {
		computeCtx := context.WithoutCancel(ctx)

		computed, err := compute(computeCtx)
		if err != nil {
			return 0.0, err
		}

		if err := c.storage.Set(computeCtx, key, computed, c.ttl); err != nil {
			return 0.0, types.NewError(types.KindCache, fmt.Sprintf("unable to write %q", key), err)
		}

		return computed, nil
	})

	select {
	case <-ctx.Done():
		return 0, types.AsError(ctx.Err())
	case res := <-resCh:
		if res.Err != nil {
			return 0, res.Err
		}

		return res.Val.(float64), nil //nolint:forcetypeassert // always float64
	}
}

// invalidate drops the value stored under the key
func (c *RateCache) invalidate(ctx context.Context, key string) error {
	if err := c.storage.Delete(ctx, key); err != nil {
		return types.NewError(types.KindCache, fmt.Sprintf("unable to delete %q", key), err)
	}

	return nil
}
