package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/syncforge/circuitbreaker"
	"github.com/BaSui01/syncforge/metrics"
	"github.com/BaSui01/syncforge/types"
)

// fastConfig keeps backoff delays out of test wall time.
func fastConfig() Config {
	return Config{Schedule: []time.Duration{time.Millisecond, 2 * time.Millisecond}}
}

func TestExecutor_SuccessFirstAttempt(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	exec := NewExecutor(fastConfig(), nil, zap.NewNop())

	result, err := exec.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return "ok", nil
	}, 3, nil)

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	exec := NewExecutor(fastConfig(), nil, zap.NewNop())

	result, err := exec.Execute(context.Background(), func(ctx context.Context) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("transient")
		}
		return 42, nil
	}, 3, nil)

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, int32(3), calls.Load())
}

func TestExecutor_ExhaustedReturnsLastError(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	lastErr := errors.New("attempt 3 failed")
	exec := NewExecutor(fastConfig(), nil, zap.NewNop())

	_, err := exec.Execute(context.Background(), func(ctx context.Context) (any, error) {
		n := calls.Add(1)
		if n == 3 {
			return nil, lastErr
		}
		return nil, errors.New("earlier failure")
	}, 2, nil)

	require.Error(t, err)
	assert.Equal(t, lastErr, err)
	assert.Equal(t, int32(3), calls.Load(), "maxRetries=2 means 3 attempts total")
}

func TestExecutor_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	exec := NewExecutor(fastConfig(), nil, zap.NewNop())

	_, err := exec.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, types.NewError(types.ErrAgentNotRegistered, "no handler")
	}, 5, nil)

	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrAgentNotRegistered))
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_OpenBreakerShortCircuits(t *testing.T) {
	t.Parallel()
	cb := circuitbreaker.New("dep", circuitbreaker.Config{
		FailureThreshold:  1,
		RecoveryTimeout:   time.Hour,
		HalfOpenMaxProbes: 1,
	}, nil, zap.NewNop())
	cb.RecordFailure()
	require.Equal(t, circuitbreaker.StateOpen, cb.State())

	var calls atomic.Int32
	m := metrics.New()
	exec := NewExecutor(fastConfig(), m, zap.NewNop())

	_, err := exec.Execute(context.Background(), func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, nil
	}, 3, cb)

	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrCircuitOpen))
	assert.Equal(t, int32(0), calls.Load(), "no attempt when breaker is open")
	assert.Zero(t, m.Snapshot().TotalRequests, "short-circuit consumes no request")
}

func TestExecutor_BreakerRecordsOutcomes(t *testing.T) {
	t.Parallel()
	cb := circuitbreaker.New("dep", circuitbreaker.Config{
		FailureThreshold:  2,
		RecoveryTimeout:   time.Hour,
		HalfOpenMaxProbes: 1,
	}, nil, zap.NewNop())
	exec := NewExecutor(fastConfig(), nil, zap.NewNop())

	_, err := exec.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("down")
	}, 1, cb)

	require.Error(t, err)
	// Two failed attempts reach the threshold.
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())
}

func TestExecutor_ContextCancelDuringBackoff(t *testing.T) {
	t.Parallel()
	exec := NewExecutor(Config{Schedule: []time.Duration{time.Hour}}, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := exec.Execute(ctx, func(ctx context.Context) (any, error) {
		calls.Add(1)
		return nil, errors.New("fail")
	}, 3, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecutor_AttemptTimeout(t *testing.T) {
	t.Parallel()
	cfg := fastConfig()
	cfg.AttemptTimeout = 10 * time.Millisecond
	exec := NewExecutor(cfg, nil, zap.NewNop())

	_, err := exec.Execute(context.Background(), func(ctx context.Context) (any, error) {
		select {
		case <-time.After(time.Second):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, 0, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecutor_RecordsMetrics(t *testing.T) {
	t.Parallel()
	m := metrics.New()
	exec := NewExecutor(fastConfig(), m, zap.NewNop())

	_, err := exec.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	}, 0, nil)
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, errors.New("down")
	}, 1, nil)
	require.Error(t, err)

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.TotalRequests, "one record per Execute call, not per attempt")
	assert.Equal(t, int64(1), s.SuccessfulRequests)
	assert.Equal(t, int64(1), s.FailedRequests)
}

func TestDelayFor_ScheduleClamped(t *testing.T) {
	t.Parallel()
	exec := NewExecutor(Config{Schedule: []time.Duration{time.Second, 2 * time.Second}}, nil, zap.NewNop())
	assert.Equal(t, time.Second, exec.delayFor(0))
	assert.Equal(t, 2*time.Second, exec.delayFor(1))
	assert.Equal(t, 2*time.Second, exec.delayFor(7), "clamps to last entry")
}

func TestDelayFor_Jitter(t *testing.T) {
	t.Parallel()
	cfg := Config{Schedule: []time.Duration{time.Second}, Jitter: true}
	exec := NewExecutor(cfg, nil, zap.NewNop())

	for i := 0; i < 100; i++ {
		d := exec.delayFor(0)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}
