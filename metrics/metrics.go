package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "cbrates"

// Metrics groups the service collectors.
// A nil *Metrics is valid and records nothing
type Metrics struct {
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	FeedRequestsTotal *prometheus.CounterVec

	JobsTotal   *prometheus.CounterVec
	JobDuration prometheus.Histogram
}

// New creates the collectors and registers them with the given registerer.
// A nil registerer leaves the collectors unregistered
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of rate cache hits",
			},
		),

		CacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of rate cache misses",
			},
		),

		FeedRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_requests_total",
				Help:      "Total number of daily feed requests",
			},
			[]string{"outcome"},
		),

		JobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Total number of queued resolution jobs, by outcome",
			},
			[]string{"outcome"},
		),

		JobDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Publish to delivery duration of resolution jobs",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}

	m.CacheHitsTotal.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}

	m.CacheMissesTotal.Inc()
}

func (m *Metrics) FeedRequest(outcome string) {
	if m == nil {
		return
	}

	m.FeedRequestsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Job(outcome string, started time.Time) {
	if m == nil {
		return
	}

	m.JobsTotal.WithLabelValues(outcome).Inc()
	m.JobDuration.Observe(time.Since(started).Seconds())
}
