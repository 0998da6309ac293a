package agent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides Prometheus-compatible metrics for conversation graph
// execution, namespaced with "salesagent_".
//
// Metrics exposed:
//
//  1. runs_total (counter): Turns started.
//  2. steps_total (counter): Step executions, labeled by step and status
//     (success/error).
//  3. step_latency_ms (histogram): Step execution duration in
//     milliseconds, labeled by step.
//     Buckets: [1, 5, 10, 50, 100, 500, 1000, 5000, 10000].
//  4. tool_errors_total (counter): Tool handler failures surfaced as
//     recoverable tool-error messages, labeled by tool.
//  5. orders_total (counter): Order placement attempts, labeled by
//     status (created/unavailable/failed).
//
// Usage:
//
//	registry := prometheus.NewRegistry()
//	metrics := agent.NewMetrics(registry)
//	eng := agent.New(reducer, st, emitter, agent.Options{Metrics: metrics})
//
//	// Expose via HTTP for Prometheus scraping:
//	http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
//
// Thread-safe: the underlying Prometheus collectors handle concurrency.
type Metrics struct {
	runs        prometheus.Counter
	steps       *prometheus.CounterVec
	stepLatency *prometheus.HistogramVec
	toolErrors  *prometheus.CounterVec
	orders      *prometheus.CounterVec
}

// NewMetrics creates and registers all graph execution metrics with the
// provided Prometheus registry (use prometheus.DefaultRegisterer for the
// global registry).
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		runs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "salesagent",
			Name:      "runs_total",
			Help:      "Total number of conversation turns started.",
		}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesagent",
			Name:      "steps_total",
			Help:      "Total number of step executions.",
		}, []string{"step", "status"}),
		stepLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "salesagent",
			Name:      "step_latency_ms",
			Help:      "Step execution duration in milliseconds.",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		}, []string{"step"}),
		toolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesagent",
			Name:      "tool_errors_total",
			Help:      "Total number of tool handler failures.",
		}, []string{"tool"}),
		orders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "salesagent",
			Name:      "orders_total",
			Help:      "Total number of order placement attempts.",
		}, []string{"status"}),
	}
}

// RunStarted records the start of a conversation turn.
func (m *Metrics) RunStarted() {
	m.runs.Inc()
}

// ObserveStep records one step execution with its outcome and duration.
func (m *Metrics) ObserveStep(step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.steps.WithLabelValues(step, status).Inc()
	m.stepLatency.WithLabelValues(step).Observe(float64(d.Milliseconds()))
}

// ObserveToolError records a tool handler failure. Wire this as the
// dispatcher's error hook.
func (m *Metrics) ObserveToolError(tool string) {
	m.toolErrors.WithLabelValues(tool).Inc()
}

// ObserveOrder records the outcome of an order placement attempt.
// Status is one of "created", "unavailable", or "failed".
func (m *Metrics) ObserveOrder(status string) {
	m.orders.WithLabelValues(status).Inc()
}
