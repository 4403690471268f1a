package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOrderMetricsExportsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOrderMetrics(reg)

	m.IncCheckout("succeeded")
	m.IncCheckout("succeeded")
	m.IncCheckout("")
	m.IncPaymentCallback("unknown_order")
	m.IncNotification("pending-payment", "delivered")
	m.IncStockConflict()
	m.IncIntegrityViolation()
	m.AddCartsCollected(3)
	m.AddCartsCollected(-1)
	m.SetStalePending(4)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "checkout_attempts_total", "outcome", "succeeded"); err != nil || got != 2 {
		t.Fatalf("expected 2 succeeded checkouts, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "checkout_attempts_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected empty outcome normalized to unknown, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "payment_callbacks_total", "outcome", "unknown_order"); err != nil || got != 1 {
		t.Fatalf("expected unknown_order callback, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "notifications_total", "template", "pending-payment"); err != nil || got != 1 {
		t.Fatalf("expected one notification, got %f (%v)", got, err)
	}

	if mf := findMetricFamily(mfs, "carts_collected_total"); mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 3 {
		t.Fatalf("expected 3 carts collected")
	}
	if mf := findMetricFamily(mfs, "orders_stale_pending"); mf == nil || mf.GetMetric()[0].GetGauge().GetValue() != 4 {
		t.Fatalf("expected stale pending gauge 4")
	}
	if mf := findMetricFamily(mfs, "stock_integrity_violations_total"); mf == nil || mf.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatalf("expected one integrity violation")
	}
}

func TestNilOrderMetricsIsSafe(t *testing.T) {
	var m *OrderMetrics
	m.IncCheckout("x")
	m.IncStockConflict()
	m.IncIntegrityViolation()
	m.IncPaymentCallback("x")
	m.IncNotification("x", "y")
	m.SetStalePending(1)
	m.AddCartsCollected(1)

	unregistered := NewOrderMetrics(nil)
	unregistered.IncCheckout("x")
}
