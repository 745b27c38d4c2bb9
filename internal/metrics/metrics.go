// Package metrics exposes Prometheus counters for checkouts and gateway callbacks.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the service's collectors. A nil *Metrics records nothing.
type Metrics struct {
	Checkouts       *prometheus.CounterVec
	Callbacks       *prometheus.CounterVec
	DecryptFailures *prometheus.CounterVec
	NotifyFailures  prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Checkouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_requests_total",
				Help: "Checkout attempts by result",
			},
			[]string{"result"},
		),
		Callbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_callbacks_total",
				Help: "Gateway callbacks by reconciliation outcome",
			},
			[]string{"outcome"},
		),
		DecryptFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_decrypt_failures_total",
				Help: "Rejected gateway payloads by reason",
			},
			[]string{"reason"},
		),
		NotifyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shop_notify_failures_total",
			Help: "Settled orders the shop backend could not be told about",
		}),
	}
	reg.MustRegister(m.Checkouts, m.Callbacks, m.DecryptFailures, m.NotifyFailures)
	return m
}

func (m *Metrics) CheckoutResult(result string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(result).Inc()
}

func (m *Metrics) CallbackOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Callbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DecryptFailure(reason string) {
	if m == nil {
		return
	}
	m.DecryptFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) NotifyFailure() {
	if m == nil {
		return
	}
	m.NotifyFailures.Inc()
}
