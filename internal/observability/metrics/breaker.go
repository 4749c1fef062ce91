package metrics

import "github.com/prometheus/client_golang/prometheus"

// BreakerMetrics exports circuit breaker transitions of outbound calls
// (ragflow.chat, tavily.search, nats.publish, ...).
type BreakerMetrics struct {
	service     string
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

func NewBreakerMetrics(service string, registerer prometheus.Registerer) *BreakerMetrics {
	state := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "hls",
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Current breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hls",
			Subsystem: "circuit_breaker",
			Name:      "transitions_total",
			Help:      "Total breaker state transitions per operation and target state.",
		},
		[]string{"service", "operation", "to"},
	)
	registerer.MustRegister(state, transitions)
	return &BreakerMetrics{service: service, state: state, transitions: transitions}
}

// OnStateChange matches resilience.Config.OnStateChange.
func (m *BreakerMetrics) OnStateChange(operation, _, to string) {
	m.state.WithLabelValues(m.service, operation).Set(breakerStateValue(to))
	m.transitions.WithLabelValues(m.service, operation, to).Inc()
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
