// Package metrics provides Prometheus instrumentation for signer operations
// and the Argon2 worker pool.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all signer metrics
	Namespace = "wallet_signer"

	// Label names
	LabelOperation = "op"
	LabelOutcome   = "outcome"
	LabelMethod    = "method"

	// Outcome values
	OutcomeOK                = "ok"
	OutcomeInvalidCredential = "invalid_credential"
	OutcomeValidation        = "validation"
	OutcomeInternal          = "internal"
	OutcomeCanceled          = "canceled"
)

// Metrics holds the signer collectors. A nil *Metrics records nothing, so
// components can be built without instrumentation.
type Metrics struct {
	operations *prometheus.CounterVec
	kdf        *prometheus.HistogramVec
}

// New registers the signer collectors on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "operations_total",
				Help:      "Signer operations by name and outcome",
			},
			[]string{LabelOperation, LabelOutcome},
		),
		kdf: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "kdf_duration_seconds",
				Help:      "Time spent deriving share keys, by auth method",
				// argon2 at production cost sits in the tens to hundreds of ms
				Buckets: []float64{.0005, .005, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{LabelMethod},
		),
	}
}

// RegisterPoolGauge exposes the number of running Argon2 derivations.
// inflight is read at scrape time.
func RegisterPoolGauge(reg prometheus.Registerer, inflight func() int64) prometheus.GaugeFunc {
	return promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "kdf_inflight",
			Help:      "Argon2 derivations currently running on the worker pool",
		},
		func() float64 { return float64(inflight()) },
	)
}

// RecordOperation counts one finished operation
func (m *Metrics) RecordOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

// ObserveKDF records how long one key derivation took
func (m *Metrics) ObserveKDF(method string, d time.Duration) {
	if m == nil {
		return
	}
	m.kdf.WithLabelValues(method).Observe(d.Seconds())
}
