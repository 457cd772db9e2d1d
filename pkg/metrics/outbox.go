package metrics

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels recorded by OutboxMetrics.
const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics counts publisher outcomes per event type.
type OutboxMetrics struct {
	events  *prometheus.CounterVec
	batches prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "batch_errors_total",
		Help:      "Publisher batches that failed and triggered a backoff.",
	})
	reg.MustRegister(events, batches)
	return &OutboxMetrics{events: events, batches: batches}
}

func (m *OutboxMetrics) Observe(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *OutboxMetrics) IncBatchError() {
	if m == nil || m.batches == nil {
		return
	}
	m.batches.Inc()
}
