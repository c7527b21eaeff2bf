package cache

import (
	"log/slog"
	"time"

	"github.com/sig-0/cbrates/metrics"
)

type Option func(c *RateCache)

// WithLogger specifies the logger for the cache
func WithLogger(l *slog.Logger) Option {
	return func(c *RateCache) {
		c.logger = l
	}
}

// WithTTL specifies the lifetime of cached values.
// Defaults to 1h
func WithTTL(ttl time.Duration) Option {
	return func(c *RateCache) {
		c.ttl = ttl
	}
}

// WithMetrics specifies the metrics collectors for the cache
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *RateCache) {
		c.metrics = m
	}
}
