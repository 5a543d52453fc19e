// Package metrics provides internal Prometheus instrumentation.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector exports engine counters and latencies to Prometheus.
type Collector struct {
	taskExecutionsTotal *prometheus.CounterVec
	taskDuration        *prometheus.HistogramVec
	retryAttemptsTotal  *prometheus.CounterVec
	breakerTransitions  *prometheus.CounterVec
	eventsDispatched    *prometheus.CounterVec
	workflowsTotal      *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector registered on reg. A nil reg uses the
// default registerer.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.taskExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_executions_total",
			Help:      "Total number of task executions",
		},
		[]string{"agent", "status"},
	)

	c.taskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"agent"},
	)

	c.retryAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of retry attempts beyond the first try",
		},
		[]string{"agent"},
	)

	c.breakerTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_transitions_total",
			Help:      "Total number of circuit breaker state transitions",
		},
		[]string{"key", "from_state", "to_state"},
	)

	c.eventsDispatched = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dispatched_total",
			Help:      "Total number of integration events dispatched",
		},
		[]string{"event_type"},
	)

	c.workflowsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflows_total",
			Help:      "Total number of workflows by final status",
		},
		[]string{"status"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordTaskExecution records one settled task dispatch.
func (c *Collector) RecordTaskExecution(agent, status string, duration time.Duration) {
	c.taskExecutionsTotal.WithLabelValues(agent, status).Inc()
	c.taskDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

// RecordRetryAttempts records retries consumed by a task dispatch.
func (c *Collector) RecordRetryAttempts(agent string, retries int) {
	if retries > 0 {
		c.retryAttemptsTotal.WithLabelValues(agent).Add(float64(retries))
	}
}

// RecordBreakerTransition records a circuit breaker state change.
func (c *Collector) RecordBreakerTransition(key, fromState, toState string) {
	c.breakerTransitions.WithLabelValues(key, fromState, toState).Inc()
}

// RecordEventDispatched records one event delivered by the bus.
func (c *Collector) RecordEventDispatched(eventType string) {
	c.eventsDispatched.WithLabelValues(eventType).Inc()
}

// RecordWorkflow records a workflow reaching a terminal status.
func (c *Collector) RecordWorkflow(status string) {
	c.workflowsTotal.WithLabelValues(status).Inc()
}
