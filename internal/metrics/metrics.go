// Package metrics exposes Prometheus collectors for reservations and checkouts.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	reservations *prometheus.CounterVec
	checkouts    *prometheus.CounterVec
	checkoutTime prometheus.Histogram
	swept        prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "reservations_total",
			Help:      "Stock reservation attempts by result.",
		}, []string{"result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkouts_total",
			Help:      "Checkout attempts by result.",
		}, []string{"result"}),
		checkoutTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "checkout_duration_seconds",
			Help:      "Checkout latency including the commit transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "reservations_swept_total",
			Help:      "Expired reservation rows deleted by the sweeper.",
		}),
	}
	reg.MustRegister(m.reservations, m.checkouts, m.checkoutTime, m.swept)
	return m
}

func (m *Metrics) Reservation(result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
}

func (m *Metrics) Checkout(result string, started time.Time) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
	m.checkoutTime.Observe(time.Since(started).Seconds())
}

func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}
