package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the lifecycle core.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	VerificationRequests *prometheus.CounterVec
	VerificationLatency  *prometheus.HistogramVec
	Transitions          *prometheus.CounterVec
	EventsAppended       *prometheus.CounterVec
	Published            *prometheus.CounterVec
	Dropped              *prometheus.CounterVec
	SinkErrors           *prometheus.CounterVec
	Subscribers          prometheus.Gauge
	DependencyUp         *prometheus.GaugeVec
	Escalations          prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerificationRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicfix_verification_requests_total",
			Help: "Calls to the AI verification service by operation and outcome",
		}, []string{"operation", "outcome"}),
		VerificationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civicfix_verification_duration_seconds",
			Help:    "Latency of AI verification calls including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicfix_lifecycle_transitions_total",
			Help: "Lifecycle transitions by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		EventsAppended: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicfix_timeline_events_total",
			Help: "Timeline events committed by type",
		}, []string{"event_type"}),
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicfix_distribution_published_total",
			Help: "Messages handed to each distribution sink",
		}, []string{"sink"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicfix_distribution_dropped_total",
			Help: "Messages dropped under back-pressure",
		}, []string{"reason"}),
		SinkErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "civicfix_distribution_sink_errors_total",
			Help: "Delivery failures per distribution sink",
		}, []string{"sink"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "civicfix_realtime_subscribers",
			Help: "Currently connected real-time subscribers",
		}),
		DependencyUp: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "civicfix_dependency_up",
			Help: "1 when the dependency is healthy, 0 when degraded, -1 when disabled",
		}, []string{"dependency"}),
		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "civicfix_deadline_escalations_total",
			Help: "Issues escalated by the resolution deadline sweep",
		}),
	}
}

func (m *Metrics) ObserveVerification(operation string, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.VerificationRequests.WithLabelValues(operation, outcome).Inc()
	m.VerificationLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveTransition(trigger string, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) IncEventAppended(eventType string) {
	if m == nil {
		return
	}
	m.EventsAppended.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncPublished(sink string) {
	if m == nil {
		return
	}
	m.Published.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncSinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrors.WithLabelValues(sink).Inc()
}

func (m *Metrics) AddSubscribers(delta float64) {
	if m == nil {
		return
	}
	m.Subscribers.Add(delta)
}

func (m *Metrics) SetDependency(name string, value float64) {
	if m == nil {
		return
	}
	m.DependencyUp.WithLabelValues(name).Set(value)
}

func (m *Metrics) IncEscalations() {
	if m == nil {
		return
	}
	m.Escalations.Inc()
}
