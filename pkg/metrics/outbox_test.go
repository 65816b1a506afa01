package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestOutboxMetricsCountsDeliveries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.ObserveDelivery("order_created", "published")
	m.ObserveDelivery("order_created", "published")
	m.ObserveDelivery("order_shipped", "terminal")
	m.IncBatch()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "outbox_deliveries_total", "outcome", "terminal"); err != nil || got != 1 {
		t.Fatalf("expected terminal=1, got %f err=%v", got, err)
	}
	published, err := findMetric(mfs, "outbox_deliveries_total", "outcome", "published")
	if err != nil {
		t.Fatalf("find published: %v", err)
	}
	if labelValue(published, "event_type") != "order_created" || published.GetCounter().GetValue() != 2 {
		t.Fatalf("unexpected published series %v", published)
	}
	batches := findMetricFamily(mfs, "outbox_batches_total")
	if batches == nil || batches.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Fatal("expected one batch")
	}

	var nilMetrics *OutboxMetrics
	nilMetrics.ObserveDelivery("x", "published")
	nilMetrics.IncBatch()
}
