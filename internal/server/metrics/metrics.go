// Package metrics exposes Prometheus instruments for the authentication
// service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OpRegister     = "register"
	OpLogin        = "login"
	OpRefresh      = "refresh"
	OpLogout       = "logout"
	OpAuthenticate = "authenticate"
	OpPurge        = "purge"

	OutcomeSuccess     = "success"
	OutcomeInvalid     = "invalid"
	OutcomeExpired     = "expired"
	OutcomeDuplicate   = "duplicate"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	operations *prometheus.CounterVec
	hashTime   prometheus.Histogram
}

// New creates the instruments and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gophauth",
			Name:      "auth_operations_total",
			Help:      "Authentication operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		hashTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gophauth",
			Name:      "password_hash_seconds",
			Help:      "Time spent hashing or verifying passwords.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.hashTime} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) Observe(operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveHash(d time.Duration) {
	if m == nil {
		return
	}
	m.hashTime.Observe(d.Seconds())
}
