package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricVerificationsTotal = "shopfinder_session_verifications_total"
	MetricSessionValid       = "shopfinder_session_valid"
)

// Verification results used as label values.
const (
	ResultValid   = "valid"
	ResultInvalid = "invalid"
	ResultError   = "error"
	ResultStale   = "stale"
)

// Metrics contains Prometheus metrics for session verification.
// All operations are thread-safe.
type Metrics struct {
	verifications *prometheus.CounterVec
	valid         prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricVerificationsTotal,
				Help: "Total number of session verification round-trips by result",
			},
			[]string{"result"},
		),
		valid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricSessionValid,
			Help: "1 when the current session token has been confirmed valid, 0 otherwise",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncVerification counts one verification with the given result label.
func (m *Metrics) IncVerification(result string) {
	m.verifications.WithLabelValues(result).Inc()
}

// SetValid records whether the session is currently valid.
func (m *Metrics) SetValid(valid bool) {
	if valid {
		m.valid.Set(1)
		return
	}
	m.valid.Set(0)
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.verifications,
		m.valid,
	}
}
