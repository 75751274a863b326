package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Recorded        *prometheus.CounterVec
	PublishFailures prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Recorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "sphere_rewards_recorded_total",
			Help: "Pending rewards recorded, by reward type",
		}, []string{"type"}),
		PublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "sphere_reward_publish_failures_total",
			Help: "Reward events that could not be published",
		}),
	}
}

func (m *Metrics) IncrementRecorded(rewardType string) {
	m.Recorded.WithLabelValues(rewardType).Inc()
}

func (m *Metrics) IncrementPublishFailure() {
	m.PublishFailures.Inc()
}
