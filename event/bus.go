// Package event provides the in-process publish/subscribe bus carrying
// integration events between agents and the coordinator. Delivery is
// at-least-once to local subscribers; nothing is persisted.
package event

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/syncforge/metrics"
)

// Well-known event types emitted by the coordinator.
const (
	TypeWorkflowStarted   = "workflow_started"
	TypeWorkflowCompleted = "workflow_completed"
	TypeWorkflowCancelled = "workflow_cancelled"
	TypeTaskCompleted     = "task_completed"
	TypeTaskFailed        = "task_failed"
	TypeTaskSkipped       = "task_skipped"
)

// IntegrationEvent is the record carried between agents.
type IntegrationEvent struct {
	EventID        string         `json:"event_id"`
	EventType      string         `json:"event_type"`
	SourcePlatform string         `json:"source_platform"`
	TargetPlatform string         `json:"target_platform,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	CorrelationID  string         `json:"correlation_id,omitempty"`
	RetryCount     int            `json:"retry_count"`
	MaxRetries     int            `json:"max_retries"`
}

// NewEvent creates an IntegrationEvent with a fresh ID and timestamp.
func NewEvent(eventType, sourcePlatform string, payload map[string]any) IntegrationEvent {
	return IntegrationEvent{
		EventID:        uuid.NewString(),
		EventType:      eventType,
		SourcePlatform: sourcePlatform,
		Payload:        payload,
		Timestamp:      time.Now(),
	}
}

// Handler processes a delivered event. A returned error is logged and does
// not affect other handlers.
type Handler func(event IntegrationEvent) error

// subscriptionCounter generates unique subscription IDs.
var subscriptionCounter int64

type subscription struct {
	id      string
	handler Handler
}

// Bus is an in-process event bus. Publish enqueues events in FIFO order and
// the Run loop dispatches them to subscribers in registration order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]subscription

	queue    chan IntegrationEvent
	done     chan struct{}
	stopOnce sync.Once

	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewBus creates an event bus. metrics may be nil to disable the
// eventsProcessed counter.
func NewBus(queueSize int, m *metrics.Metrics, logger *zap.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]subscription),
		queue:    make(chan IntegrationEvent, queueSize),
		done:     make(chan struct{}),
		metrics:  m,
		logger:   logger.With(zap.String("component", "event_bus")),
	}
}

// Subscribe registers a handler for an event type and returns its
// subscription ID. Handlers for the same type run in registration order.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := fmt.Sprintf("%s-%d", eventType, atomic.AddInt64(&subscriptionCounter, 1))
	b.handlers[eventType] = append(b.handlers[eventType], subscription{id: id, handler: handler})
	return id
}

// Unsubscribe removes a subscription by ID.
func (b *Bus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.handlers {
		for i, sub := range subs {
			if sub.id == subscriptionID {
				b.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				if len(b.handlers[eventType]) == 0 {
					delete(b.handlers, eventType)
				}
				return
			}
		}
	}
}

// Publish enqueues an event for the Run loop. It blocks when the queue is
// full rather than dropping, and is a no-op after Stop.
func (b *Bus) Publish(event IntegrationEvent) {
	select {
	case <-b.done:
		return
	default:
	}
	select {
	case b.queue <- event:
	case <-b.done:
	}
}

// PublishSync dispatches an event inline on the caller's goroutine, for
// callers that need ordering with respect to their own code.
func (b *Bus) PublishSync(event IntegrationEvent) {
	b.dispatch(event)
}

// Run dequeues and dispatches events until Stop is called. Intended to run on
// its own goroutine.
func (b *Bus) Run() {
	for {
		select {
		case event := <-b.queue:
			b.dispatch(event)
		case <-b.done:
			// Drain what was enqueued before the stop.
			for {
				select {
				case event := <-b.queue:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

// Stop shuts the bus down. Idempotent.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
	})
}

// dispatch delivers one event to all handlers registered for its type,
// isolating handler errors and panics from one another.
func (b *Bus) dispatch(event IntegrationEvent) {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[event.EventType]))
	copy(subs, b.handlers[event.EventType])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.invoke(sub, event)
	}

	if b.metrics != nil {
		b.metrics.RecordEvent()
	}
}

func (b *Bus) invoke(sub subscription, event IntegrationEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("subscription_id", sub.id),
				zap.String("event_type", event.EventType),
				zap.Any("recover", r))
		}
	}()

	if err := sub.handler(event); err != nil {
		b.logger.Error("event handler failed",
			zap.String("subscription_id", sub.id),
			zap.String("event_type", event.EventType),
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}
