package status

import "github.com/prometheus/client_golang/prometheus"

// MetricsSink exports the event stream to Prometheus. Node-level events
// feed a counter partitioned by category, phase and outcome plus a
// processing-time histogram; failures are additionally counted by the
// stage that failed. Run-level events (empty node handle) drive the
// active-runs gauge.
type MetricsSink struct {
	nodeEvents   *prometheus.CounterVec
	nodeFailures *prometheus.CounterVec
	nodeSeconds  *prometheus.HistogramVec
	activeRuns   *prometheus.GaugeVec
}

// NewMetricsSink registers the pipeline metrics with reg.
func NewMetricsSink(reg prometheus.Registerer) *MetricsSink {
	s := &MetricsSink{
		nodeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a11y",
			Subsystem: "pipeline",
			Name:      "node_events_total",
			Help:      "Remediation node events by category, phase and outcome.",
		}, []string{"category", "phase", "type"}),
		nodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "a11y",
			Subsystem: "pipeline",
			Name:      "node_failures_total",
			Help:      "Failed node steps by category, phase and failing stage.",
		}, []string{"category", "phase", "stage"}),
		nodeSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "a11y",
			Subsystem: "pipeline",
			Name:      "node_duration_seconds",
			Help:      "Per-node processing time by category and phase.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"category", "phase"}),
		activeRuns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "a11y",
			Subsystem: "pipeline",
			Name:      "active_runs",
			Help:      "Remediation runs currently in flight, by category.",
		}, []string{"category"}),
	}
	reg.MustRegister(s.nodeEvents, s.nodeFailures, s.nodeSeconds, s.activeRuns)
	return s
}

func (s *MetricsSink) Publish(e Event) {
	if e.Node != "" {
		s.nodeEvents.WithLabelValues(e.Category, e.Phase, string(e.Type)).Inc()
		if e.Type == EventFailed {
			s.nodeFailures.WithLabelValues(e.Category, e.Phase, e.Stage).Inc()
		}
		if e.Elapsed > 0 {
			s.nodeSeconds.WithLabelValues(e.Category, e.Phase).Observe(e.Elapsed.Seconds())
		}
		return
	}
	// Run lifecycle events carry no phase; phase-scoped notices such as
	// teardown do not move the gauge.
	if e.Phase != "" {
		return
	}
	switch e.Type {
	case EventStarted:
		s.activeRuns.WithLabelValues(e.Category).Inc()
	case EventSucceeded, EventFailed:
		s.activeRuns.WithLabelValues(e.Category).Dec()
	}
}
