package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics covers checkout, inventory, payment callbacks and notifications.
// A nil *OrderMetrics is valid and records nothing.
type OrderMetrics struct {
	checkouts           *prometheus.CounterVec
	stockConflicts      prometheus.Counter
	integrityViolations prometheus.Counter
	paymentCallbacks    *prometheus.CounterVec
	notifications       *prometheus.CounterVec
	stalePending        prometheus.Gauge
	cartsCollected      prometheus.Counter
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	m := &OrderMetrics{
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_attempts_total",
			Help: "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		stockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_conflicts_total",
			Help: "Conditional stock decrements that found insufficient stock.",
		}),
		integrityViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_integrity_violations_total",
			Help: "Decrements that had to clamp stock at zero.",
		}),
		paymentCallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_callbacks_total",
			Help: "Payment gateway callbacks by reconciliation outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries by template and result.",
		}, []string{"template", "result"}),
		stalePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orders_stale_pending",
			Help: "Pending orders older than the audit threshold at the last audit run.",
		}),
		cartsCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "carts_collected_total",
			Help: "Abandoned guest carts deleted by the cart GC job.",
		}),
	}
	reg.MustRegister(
		m.checkouts,
		m.stockConflicts,
		m.integrityViolations,
		m.paymentCallbacks,
		m.notifications,
		m.stalePending,
		m.cartsCollected,
	)
	return m
}

func (m *OrderMetrics) IncCheckout(outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *OrderMetrics) IncStockConflict() {
	if m == nil || m.stockConflicts == nil {
		return
	}
	m.stockConflicts.Inc()
}

func (m *OrderMetrics) IncIntegrityViolation() {
	if m == nil || m.integrityViolations == nil {
		return
	}
	m.integrityViolations.Inc()
}

func (m *OrderMetrics) IncPaymentCallback(outcome string) {
	if m == nil || m.paymentCallbacks == nil {
		return
	}
	m.paymentCallbacks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *OrderMetrics) IncNotification(template, result string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(template), normalizeLabel(result)).Inc()
}

func (m *OrderMetrics) SetStalePending(count int) {
	if m == nil || m.stalePending == nil {
		return
	}
	m.stalePending.Set(float64(count))
}

func (m *OrderMetrics) AddCartsCollected(count int) {
	if m == nil || m.cartsCollected == nil || count <= 0 {
		return
	}
	m.cartsCollected.Add(float64(count))
}
