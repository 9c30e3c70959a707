// Package metrics exposes the orchestrator's Prometheus collectors (spec §9
// supplemented observability; SPEC_FULL.md §4). Grounded on the teacher's
// internal/observability context metrics
// (NewXWithRegisterer(registerer) constructor, GaugeVec/CounterVec fields
// registered at construction time).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the orchestrator reports.
type Metrics struct {
	generationPermitsInUse   prometheus.Gauge
	verificationPermitsInUse prometheus.Gauge

	circuitBreakerState *prometheus.GaugeVec

	tasksTerminal *prometheus.CounterVec

	llmCallLatency *prometheus.HistogramVec
}

// New registers every collector against reg and returns a ready Metrics.
// Passing prometheus.NewRegistry() keeps tests isolated from the process
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		generationPermitsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_generation_permits_in_use",
			Help: "Number of ConcurrencyGovernor generation permits currently held.",
		}),
		verificationPermitsInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "orchestrator_verification_permits_in_use",
			Help: "Number of ConcurrencyGovernor verification permits currently held.",
		}),
		circuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "orchestrator_circuit_breaker_state",
			Help: "Circuit breaker state per name: 0=closed, 1=open, 2=half-open.",
		}, []string{"name"}),
		tasksTerminal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orchestrator_tasks_terminal_total",
			Help: "Tasks that reached a terminal status, by status.",
		}, []string{"status"}),
		llmCallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orchestrator_llm_call_duration_seconds",
			Help:    "LLM completion call latency in seconds, by agent.",
			Buckets: prometheus.DefBuckets,
		}, []string{"agent"}),
	}
	reg.MustRegister(
		m.generationPermitsInUse,
		m.verificationPermitsInUse,
		m.circuitBreakerState,
		m.tasksTerminal,
		m.llmCallLatency,
	)
	return m
}

// SetGenerationPermitsInUse records the governor's current generation-permit
// occupancy.
func (m *Metrics) SetGenerationPermitsInUse(n int64) {
	m.generationPermitsInUse.Set(float64(n))
}

// SetVerificationPermitsInUse records the governor's current
// verification-permit occupancy.
func (m *Metrics) SetVerificationPermitsInUse(n int64) {
	m.verificationPermitsInUse.Set(float64(n))
}

// Circuit breaker state values, matching alexerrors.CircuitState ordering.
const (
	CircuitClosed   = 0
	CircuitOpen     = 1
	CircuitHalfOpen = 2
)

// SetCircuitBreakerState records name's current state (Closed/HalfOpen/Open).
func (m *Metrics) SetCircuitBreakerState(name string, state float64) {
	m.circuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordTaskTerminal increments the terminal-status counter for status.
func (m *Metrics) RecordTaskTerminal(status string) {
	m.tasksTerminal.WithLabelValues(status).Inc()
}

// ObserveLLMCallSeconds records one LLM completion call's latency for agent.
func (m *Metrics) ObserveLLMCallSeconds(agent string, seconds float64) {
	m.llmCallLatency.WithLabelValues(agent).Observe(seconds)
}
