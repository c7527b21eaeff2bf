package dispatch

import (
	"log/slog"
	"time"

	"github.com/sig-0/cbrates/metrics"
)

type Option func(o *Orchestrator)

// WithLogger specifies the logger for the orchestrator
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithQueueName specifies the queue jobs travel through.
// Defaults to exchange_rates_queue
func WithQueueName(name string) Option {
	return func(o *Orchestrator) {
		o.queueName = name
	}
}

// WithPollWait specifies the longest single wait on the queue.
// Defaults to 30s
func WithPollWait(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.pollWait = d
	}
}

// WithMaxWait specifies the total time a job is awaited for,
// before the call times out. Defaults to 5m
func WithMaxWait(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.maxWait = d
	}
}

// WithMetrics specifies the metrics collectors for the orchestrator
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}
