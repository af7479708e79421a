// Package metrics holds the Prometheus collectors of the payment pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Payment outcomes.
const (
	OutcomeRecorded  = "recorded"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Amount kinds.
const (
	KindAllocated  = "allocated"
	KindCredited   = "credited"
	KindUnassigned = "unassigned"
)

// Metrics groups the collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	payments *prometheus.CounterVec
	amounts  *prometheus.CounterVec
	duration prometheus.Histogram
}

// New creates the collectors and registers them, with the Go and process collectors,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fees_payments_total",
			Help: "Payments processed, by outcome.",
		}, []string{"outcome"}),
		amounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fees_amount_total",
			Help: "Currency units booked by recorded payments, by kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fees_payment_duration_seconds",
			Help:    "Time spent processing one payment.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.payments,
		m.amounts,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObservePayment counts one processed payment. A nil Metrics is a no-op.
func (m *Metrics) ObservePayment(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(outcome).Inc()
	m.duration.Observe(elapsed.Seconds())
}

// AddAmounts adds the booked amounts of a recorded payment.
func (m *Metrics) AddAmounts(allocated, credited, unassigned int64) {
	if m == nil {
		return
	}
	m.amounts.WithLabelValues(KindAllocated).Add(float64(allocated))
	m.amounts.WithLabelValues(KindCredited).Add(float64(credited))
	m.amounts.WithLabelValues(KindUnassigned).Add(float64(unassigned))
}
