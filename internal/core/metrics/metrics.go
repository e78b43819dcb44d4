package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ExecutionMetrics counts and times executor outcomes.
type ExecutionMetrics struct {
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewExecutionMetrics(reg prometheus.Registerer) (*ExecutionMetrics, error) {
	m := &ExecutionMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallettx",
			Name:      "execute_total",
			Help:      "Wallet transaction execute calls by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wallettx",
			Name:      "execute_duration_seconds",
			Help:      "Wallet transaction execute latency by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.outcomes, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *ExecutionMetrics) ObserveOutcome(outcome string, elapsed time.Duration) {
	m.outcomes.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
