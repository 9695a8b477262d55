package poller

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Poll outcomes recorded by Metrics.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
	OutcomeStale   = "stale"
)

// Metrics counts poll outcomes per source.
type Metrics struct {
	polls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the poll collectors. A nil registerer selects the
// process-wide default registry, registered once.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func (m *Metrics) observe(source, outcome string) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) observeDuration(source string, seconds float64) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(source).Observe(seconds)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	polls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opsboard_poll_total",
		Help: "Polling fetches partitioned by source and outcome.",
	}, []string{"source", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opsboard_poll_duration_seconds",
		Help:    "Duration of polling fetches that completed.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	registerer.MustRegister(polls, duration)
	return &Metrics{polls: polls, duration: duration}
}
