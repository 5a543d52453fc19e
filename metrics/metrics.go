// Package metrics provides the process-lifetime integration metrics
// accumulator. Counters are updated atomically from concurrently dispatched
// tasks and reset only on process restart.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics accumulates request and event counters for the engine.
type Metrics struct {
	totalRequests      atomic.Int64
	successfulRequests atomic.Int64
	failedRequests     atomic.Int64
	totalLatencyNanos  atomic.Int64
	eventsProcessed    atomic.Int64
}

// New creates an empty metrics accumulator.
func New() *Metrics {
	return &Metrics{}
}

// RecordRequest records one protected request outcome and its latency.
func (m *Metrics) RecordRequest(success bool, latency time.Duration) {
	m.totalRequests.Add(1)
	if success {
		m.successfulRequests.Add(1)
	} else {
		m.failedRequests.Add(1)
	}
	m.totalLatencyNanos.Add(int64(latency))
}

// RecordEvent records one event delivered by the event bus.
func (m *Metrics) RecordEvent() {
	m.eventsProcessed.Add(1)
}

// Snapshot is a point-in-time view of the accumulated counters with the
// derived rates computed.
type Snapshot struct {
	TotalRequests      int64         `json:"total_requests"`
	SuccessfulRequests int64         `json:"successful_requests"`
	FailedRequests     int64         `json:"failed_requests"`
	TotalLatency       time.Duration `json:"total_latency"`
	EventsProcessed    int64         `json:"events_processed"`
	SuccessRate        float64       `json:"success_rate"`
	AverageLatency     time.Duration `json:"average_latency"`
}

// Snapshot returns the current counter values and derived rates.
func (m *Metrics) Snapshot() Snapshot {
	total := m.totalRequests.Load()
	s := Snapshot{
		TotalRequests:      total,
		SuccessfulRequests: m.successfulRequests.Load(),
		FailedRequests:     m.failedRequests.Load(),
		TotalLatency:       time.Duration(m.totalLatencyNanos.Load()),
		EventsProcessed:    m.eventsProcessed.Load(),
	}
	if total > 0 {
		s.SuccessRate = float64(s.SuccessfulRequests) / float64(total)
		s.AverageLatency = s.TotalLatency / time.Duration(total)
	}
	return s
}
