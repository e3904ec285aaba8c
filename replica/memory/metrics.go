package memory

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts engine activity. A nil registerer keeps the collectors
// private to the engine.
type Metrics struct {
	Changes     *prometheus.CounterVec
	Merges      *prometheus.CounterVec
	Subscribers prometheus.Gauge
	Documents   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xdao_commons",
			Subsystem: "replica",
			Name:      "changes_total",
			Help:      "Local changes by outcome (committed, rejected, unchanged).",
		}, []string{"result"}),
		Merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xdao_commons",
			Subsystem: "replica",
			Name:      "merges_total",
			Help:      "Remote merges by outcome (committed, unchanged, failed).",
		}, []string{"result"}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xdao_commons",
			Subsystem: "replica",
			Name:      "subscribers",
			Help:      "Open change subscriptions.",
		}),
		Documents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xdao_commons",
			Subsystem: "replica",
			Name:      "documents",
			Help:      "Documents held by the engine.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Changes, m.Merges, m.Subscribers, m.Documents)
	}
	return m
}
