package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts cascade event deliveries by outcome.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	batches    prometheus.Counter
}

// NewOutboxMetrics registers the publisher metrics on the provided registerer.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_deliveries_total",
		Help: "Cascade event delivery attempts by event type and outcome.",
	}, []string{"event_type", "outcome"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_batches_total",
		Help: "Non-empty publish batches processed.",
	})
	reg.MustRegister(deliveries, batches)
	return &OutboxMetrics{deliveries: deliveries, batches: batches}
}

// ObserveDelivery records one delivery attempt; outcome is published, retry or terminal.
func (o *OutboxMetrics) ObserveDelivery(eventType, outcome string) {
	if o == nil || o.deliveries == nil {
		return
	}
	o.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (o *OutboxMetrics) IncBatch() {
	if o == nil || o.batches == nil {
		return
	}
	o.batches.Inc()
}
