package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type OrderMetrics struct {
	OrdersTotal           *prometheus.CounterVec
	OrderDurationMS       prometheus.Histogram
	ReservationRejections prometheus.Counter
	CacheInvalidations    prometheus.Counter
}

// New registers the order pipeline metrics against reg. Pass
// prometheus.DefaultRegisterer in production, a fresh registry in tests.
func New(reg prometheus.Registerer) *OrderMetrics {
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderengine",
		Subsystem: "orders",
		Name:      "processed_total",
		Help:      "Total number of processed orders.",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "orderengine",
		Subsystem: "orders",
		Name:      "duration_ms",
		Help:      "Single-order pipeline latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})
	rejections := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orderengine",
		Subsystem: "inventory",
		Name:      "reservation_rejections_total",
		Help:      "Stock reservations rejected for insufficient stock.",
	})
	invalidations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "orderengine",
		Subsystem: "cache",
		Name:      "invalidations_total",
		Help:      "Coarse cache invalidations issued.",
	})

	reg.MustRegister(orders, duration, rejections, invalidations)
	return &OrderMetrics{
		OrdersTotal:           orders,
		OrderDurationMS:       duration,
		ReservationRejections: rejections,
		CacheInvalidations:    invalidations,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
