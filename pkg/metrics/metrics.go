package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Backend call metrics
	BackendRequests *prometheus.CounterVec
	BackendLatency  *prometheus.HistogramVec

	// Workflow metrics
	TransitionsRejected *prometheus.CounterVec
	ConfirmationsNeeded *prometheus.CounterVec
	MutationsApplied    *prometheus.CounterVec

	// Snapshot cache metrics
	CacheLookups *prometheus.CounterVec

	// Activity feed metrics
	EventsConsumed *prometheus.CounterVec
	EventLatency   *prometheus.HistogramVec
}

// New creates application metrics without registering them.
func New(namespace string) *Metrics {
	return &Metrics{
		BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of calls to the school-health backend",
		}, []string{"operation", "outcome"}),
		BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of calls to the school-health backend",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		TransitionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_rejected_total",
			Help:      "Status changes blocked before any request was sent",
		}, []string{"domain", "from", "to"}),
		ConfirmationsNeeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Destructive actions by confirmation outcome",
		}, []string{"domain", "outcome"}),
		MutationsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Status mutations by domain and outcome",
		}, []string{"domain", "outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_lookups_total",
			Help:      "Snapshot cache lookups by result",
		}, []string{"kind", "result"}),
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_events_total",
			Help:      "Activity events received from the broker by outcome",
		}, []string{"domain", "outcome"}),
		EventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "activity_event_latency_seconds",
			Help:      "Time between an action being accepted and its event being consumed",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"domain"}),
	}
}

// MustRegister registers every collector with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) *Metrics {
	reg.MustRegister(
		m.BackendRequests,
		m.BackendLatency,
		m.TransitionsRejected,
		m.ConfirmationsNeeded,
		m.MutationsApplied,
		m.CacheLookups,
		m.EventsConsumed,
		m.EventLatency,
	)
	return m
}
