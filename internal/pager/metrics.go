package pager

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricSearchRequestsTotal = "shopfinder_search_requests_total"
	MetricStaleResponsesTotal = "shopfinder_stale_responses_total"
	MetricSearchDuration      = "shopfinder_search_duration_seconds"
)

// Request kinds and outcomes used as label values.
const (
	KindInitial  = "initial"
	KindLoadMore = "load_more"

	OutcomeOK    = "ok"
	OutcomeEmpty = "empty"
	OutcomeError = "error"
	OutcomeStale = "stale"
)

// Metrics contains Prometheus metrics for search paging.
// All operations are thread-safe.
type Metrics struct {
	requests *prometheus.CounterVec
	stale    prometheus.Counter
	duration *prometheus.HistogramVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchRequestsTotal,
				Help: "Total number of search requests by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricStaleResponsesTotal,
			Help: "Total number of search responses discarded because a newer search started",
		}),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricSearchDuration,
				Help:    "Histogram of search round-trip duration in seconds by kind",
				Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"kind"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Observe records one completed request.
func (m *Metrics) Observe(kind, outcome string, seconds float64) {
	m.requests.WithLabelValues(kind, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(seconds)
	if outcome == OutcomeStale {
		m.stale.Inc()
	}
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.requests,
		m.stale,
		m.duration,
	}
}
