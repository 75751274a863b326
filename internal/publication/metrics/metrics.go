package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the publication pipeline.
// Tracks entity creation, terminal transitions, eligibility denials and
// verifier latency.
type Metrics struct {
	Created          *prometheus.CounterVec
	Transitions      *prometheus.CounterVec
	Denials          *prometheus.CounterVec
	VerifierDuration prometheus.Histogram
	SweepExpired     prometheus.Counter
}

// New registers the publication metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the publication metrics with reg. Tests pass a
// fresh prometheus.NewRegistry().
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sphere_publication_created_total",
			Help: "Pending posts and comments created, by kind",
		}, []string{"kind"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sphere_publication_transitions_total",
			Help: "Terminal status transitions, by kind and resulting status",
		}, []string{"kind", "status"}),
		Denials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sphere_eligibility_denials_total",
			Help: "Comments rejected by the post's restriction, by deny reason",
		}, []string{"reason"}),
		VerifierDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "sphere_verifier_duration_seconds",
			Help:    "Duration of calls to the external proof verifier",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		SweepExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "sphere_publication_expired_total",
			Help: "Pending entities failed by the sweeper after their TTL",
		}),
	}
}

func (m *Metrics) IncrementCreated(kind string) {
	m.Created.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementTransition(kind, status string) {
	m.Transitions.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) IncrementDenial(reason string) {
	m.Denials.WithLabelValues(reason).Inc()
}

// ObserveVerifier records the duration of one verifier call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveVerifier(start time.Time) {
	m.VerifierDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddExpired(n int) {
	m.SweepExpired.Add(float64(n))
}
