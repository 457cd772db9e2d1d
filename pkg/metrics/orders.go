package metrics

import "github.com/prometheus/client_golang/prometheus"

// Fan-out result labels.
const (
	FanoutSucceeded = "succeeded"
	FanoutFailed    = "failed"
)

// OrderMetrics tracks order placement and per-seller fan-out outcomes.
type OrderMetrics struct {
	placed        *prometheus.CounterVec
	fanout        *prometheus.CounterVec
	statusChanges *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "placed_total",
		Help:      "Orders accepted, split by whether fan-out completed inline.",
	}, []string{"fanout_complete"})
	fanout := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "fanout_sellers_total",
		Help:      "Per-seller fan-out attempts by result.",
	}, []string{"result"})
	statusChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "orders",
		Name:      "status_changes_total",
		Help:      "Seller driven status changes by target status.",
	}, []string{"status"})
	reg.MustRegister(placed, fanout, statusChanges)
	return &OrderMetrics{placed: placed, fanout: fanout, statusChanges: statusChanges}
}

func (m *OrderMetrics) IncPlaced(fanoutComplete bool) {
	if m == nil || m.placed == nil {
		return
	}
	label := "false"
	if fanoutComplete {
		label = "true"
	}
	m.placed.WithLabelValues(label).Inc()
}

func (m *OrderMetrics) IncFanout(result string) {
	if m == nil || m.fanout == nil {
		return
	}
	m.fanout.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *OrderMetrics) IncStatusChange(status string) {
	if m == nil || m.statusChanges == nil {
		return
	}
	m.statusChanges.WithLabelValues(normalizeLabel(status)).Inc()
}
