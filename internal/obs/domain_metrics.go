package obs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CartRecalculateTotal counts pricing pipeline passes.
	CartRecalculateTotal prometheus.Counter
	// CouponOperationsTotal counts coupon lifecycle operations by outcome.
	CouponOperationsTotal *prometheus.CounterVec
	// ReservationOperationsTotal counts reservation store calls by backend and outcome.
	ReservationOperationsTotal *prometheus.CounterVec
	// ReservationOperationLatency records reservation store latency in milliseconds.
	ReservationOperationLatency *prometheus.HistogramVec
	// ReservationsPurgedTotal counts expired reservation rows removed by the worker.
	ReservationsPurgedTotal prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers the cart and coupon collectors.
// Until it is called every Observe helper is a no-op.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CartRecalculateTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_recalculate_total",
			Help:      "Number of cart pricing passes.",
		})
		CouponOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coupon_operations_total",
			Help:      "Count of coupon lifecycle operations by outcome.",
		}, []string{"op", "result"})
		ReservationOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_operations_total",
			Help:      "Count of coupon reservation store operations.",
		}, []string{"backend", "op", "result"})
		ReservationOperationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reservation_operation_duration_ms",
			Help:      "Latency of coupon reservation store operations in milliseconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"backend", "op"})
		ReservationsPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_purged_total",
			Help:      "Number of expired reservation rows purged.",
		})

		mustRegisterCollector(reg, CartRecalculateTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				CartRecalculateTotal = v
			}
		})
		mustRegisterCollector(reg, CouponOperationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CouponOperationsTotal = v
			}
		})
		mustRegisterCollector(reg, ReservationOperationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReservationOperationsTotal = v
			}
		})
		mustRegisterCollector(reg, ReservationOperationLatency, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				ReservationOperationLatency = v
			}
		})
		mustRegisterCollector(reg, ReservationsPurgedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				ReservationsPurgedTotal = v
			}
		})
	})
}

// ObserveRecalculate records one pricing pass.
func ObserveRecalculate() {
	if CartRecalculateTotal != nil {
		CartRecalculateTotal.Inc()
	}
}

// ObserveCouponOperation records a coupon lifecycle operation.
func ObserveCouponOperation(op string, err error) {
	if CouponOperationsTotal != nil {
		CouponOperationsTotal.WithLabelValues(op, ResultLabel(err)).Inc()
	}
}

// ObserveReservation records a reservation store call started at started.
func ObserveReservation(backend, op string, started time.Time, err error) {
	if ReservationOperationsTotal != nil {
		ReservationOperationsTotal.WithLabelValues(backend, op, ResultLabel(err)).Inc()
	}
	if ReservationOperationLatency != nil {
		ReservationOperationLatency.WithLabelValues(backend, op).Observe(DurationMillis(time.Since(started)))
	}
}

// ObservePurged records purged reservation rows.
func ObservePurged(n int64) {
	if ReservationsPurgedTotal != nil && n > 0 {
		ReservationsPurgedTotal.Add(float64(n))
	}
}
