package cbr

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sig-0/cbrates/metrics"
)

type Option func(c *Client)

// WithLogger specifies the logger for the client
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithHTTPClient specifies the HTTP client used for feed requests.
// The client is never modified
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithTimeout specifies the timeout of a single feed request attempt.
// Defaults to 30s
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRetries specifies how many times a failed request is retried,
// and the initial backoff between attempts
func WithRetries(retries uint64, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.backoff = backoff
	}
}

// WithMetrics specifies the metrics collectors for the client
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}
