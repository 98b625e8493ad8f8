package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects the controller's operational counters on a private
// registry exposed by the diagnostic HTTP surface.
type Metrics struct {
	Decisions     *prometheus.CounterVec
	Faults        *prometheus.CounterVec
	Reconnects    *prometheus.CounterVec
	Debounced     prometheus.Counter
	Escalations   prometheus.Counter
	CycleDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ostium_decisions_total",
			Help: "Decision cycles that reached a verdict, by outcome and reason.",
		}, []string{"outcome", "reason"}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ostium_faults_total",
			Help: "Recorded (non-suppressed) faults by type.",
		}, []string{"fault_type"}),
		Reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ostium_reconnects_total",
			Help: "Successful recovery attempts by resource.",
		}, []string{"resource"}),
		Debounced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ostium_debounced_presentations_total",
			Help: "Presentations rejected by the debounce filter.",
		}),
		Escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ostium_escalations_total",
			Help: "Cycles whose display was overridden with the assisted-resolution message.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ostium_cycle_duration_seconds",
			Help:    "Wall time of a full decision cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		m.Decisions,
		m.Faults,
		m.Reconnects,
		m.Debounced,
		m.Escalations,
		m.CycleDuration,
	)
	return m
}
