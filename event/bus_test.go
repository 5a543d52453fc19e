package event

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/syncforge/metrics"
)

func TestNewEvent(t *testing.T) {
	t.Parallel()
	e := NewEvent(TypeTaskCompleted, "github", map[string]any{"task_id": "t1"})
	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, TypeTaskCompleted, e.EventType)
	assert.Equal(t, "github", e.SourcePlatform)
	assert.False(t, e.Timestamp.IsZero())

	other := NewEvent(TypeTaskCompleted, "github", nil)
	assert.NotEqual(t, e.EventID, other.EventID)
}

func TestBus_PublishSyncRegistrationOrder(t *testing.T) {
	t.Parallel()
	bus := NewBus(16, nil, zap.NewNop())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		bus.Subscribe("sync_done", func(IntegrationEvent) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	bus.PublishSync(NewEvent("sync_done", "github", nil))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	t.Parallel()
	bus := NewBus(16, nil, zap.NewNop())

	var called bool
	bus.Subscribe("sync_done", func(IntegrationEvent) error {
		return errors.New("handler failed")
	})
	bus.Subscribe("sync_done", func(IntegrationEvent) error {
		called = true
		return nil
	})

	bus.PublishSync(NewEvent("sync_done", "github", nil))
	assert.True(t, called)
}

func TestBus_HandlerPanicIsolated(t *testing.T) {
	t.Parallel()
	bus := NewBus(16, nil, zap.NewNop())

	var called bool
	bus.Subscribe("sync_done", func(IntegrationEvent) error {
		panic("boom")
	})
	bus.Subscribe("sync_done", func(IntegrationEvent) error {
		called = true
		return nil
	})

	assert.NotPanics(t, func() {
		bus.PublishSync(NewEvent("sync_done", "github", nil))
	})
	assert.True(t, called)
}

func TestBus_RunDeliversQueuedEvents(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	bus := NewBus(16, m, zap.NewNop())

	received := make(chan IntegrationEvent, 3)
	bus.Subscribe("update_pushed", func(e IntegrationEvent) error {
		received <- e
		return nil
	})

	go bus.Run()
	defer bus.Stop()

	for i := 0; i < 3; i++ {
		bus.Publish(NewEvent("update_pushed", "studio", nil))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event delivery")
		}
	}

	assert.Eventually(t, func() bool {
		return m.Snapshot().EventsProcessed == 3
	}, time.Second, 10*time.Millisecond)
}

func TestBus_TypeFiltering(t *testing.T) {
	t.Parallel()
	bus := NewBus(16, nil, zap.NewNop())

	var got []string
	bus.Subscribe("a", func(e IntegrationEvent) error {
		got = append(got, e.EventType)
		return nil
	})

	bus.PublishSync(NewEvent("a", "github", nil))
	bus.PublishSync(NewEvent("b", "github", nil))

	assert.Equal(t, []string{"a"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	t.Parallel()
	bus := NewBus(16, nil, zap.NewNop())

	var count int
	id := bus.Subscribe("a", func(IntegrationEvent) error {
		count++
		return nil
	})

	bus.PublishSync(NewEvent("a", "github", nil))
	bus.Unsubscribe(id)
	bus.PublishSync(NewEvent("a", "github", nil))

	assert.Equal(t, 1, count)
}

func TestBus_PublishAfterStopIsNoop(t *testing.T) {
	t.Parallel()
	bus := NewBus(1, nil, zap.NewNop())
	bus.Stop()

	require.NotPanics(t, func() {
		bus.Publish(NewEvent("a", "github", nil))
		bus.Publish(NewEvent("a", "github", nil)) // would block on a full queue if not stopped
	})
	bus.Stop() // idempotent
}

func TestBus_StopDrainsQueue(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	bus := NewBus(16, m, zap.NewNop())

	bus.Subscribe("a", func(IntegrationEvent) error { return nil })
	bus.Publish(NewEvent("a", "github", nil))
	bus.Publish(NewEvent("a", "github", nil))

	done := make(chan struct{})
	go func() {
		bus.Run()
		close(done)
	}()
	bus.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
	assert.Equal(t, int64(2), m.Snapshot().EventsProcessed)
}
