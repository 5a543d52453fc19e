// Package retry wraps arbitrary operations with bounded retries over a fixed
// backoff schedule, optionally gated by a circuit breaker.
package retry

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/syncforge/circuitbreaker"
	"github.com/BaSui01/syncforge/metrics"
	"github.com/BaSui01/syncforge/types"
)

// DefaultSchedule is the fixed backoff schedule. The delay before retry n is
// Schedule[min(n, len(Schedule)-1)].
var DefaultSchedule = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// Operation is the unit of work the executor protects.
type Operation func(ctx context.Context) (any, error)

// Config configures an Executor.
type Config struct {
	// Schedule is the backoff delay table. Defaults to DefaultSchedule.
	Schedule []time.Duration `yaml:"schedule" json:"schedule"`
	// AttemptTimeout bounds each individual attempt. Zero disables it.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" json:"attempt_timeout"`
	// Jitter adds up to ±25% random variation to each delay.
	Jitter bool `yaml:"jitter" json:"jitter"`
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{Schedule: DefaultSchedule}
}

// Executor retries operations with backoff and records breaker state and
// request metrics. The wrapped operation's own side effects are the caller's
// responsibility; no rollback is performed.
type Executor struct {
	config  Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewExecutor creates a retry executor. metrics may be nil to disable
// recording.
func NewExecutor(config Config, m *metrics.Metrics, logger *zap.Logger) *Executor {
	if len(config.Schedule) == 0 {
		config.Schedule = DefaultSchedule
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		config:  config,
		metrics: m,
		logger:  logger.With(zap.String("component", "retry_executor")),
	}
}

// Execute runs op up to maxRetries+1 times. When breaker is non-nil, an open
// breaker fails the call immediately with a CIRCUIT_OPEN error before any
// attempt, and every attempt outcome is recorded against it.
func (e *Executor) Execute(ctx context.Context, op Operation, maxRetries int, breaker *circuitbreaker.CircuitBreaker) (any, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	if breaker != nil && !breaker.CanExecute() {
		return nil, types.NewError(types.ErrCircuitOpen, "circuit breaker open, request rejected")
	}

	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := e.delayFor(attempt - 1)
			e.logger.Debug("retrying operation",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", maxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr))

			select {
			case <-ctx.Done():
				e.record(false, start)
				return nil, ctx.Err()
			case <-time.After(delay):
			}

			// The breaker may have opened under a shared key while this
			// call was backing off.
			if breaker != nil && !breaker.CanExecute() {
				e.record(false, start)
				return nil, types.NewError(types.ErrCircuitOpen, "circuit breaker open, retry rejected")
			}
		}

		result, err := e.attempt(ctx, op)
		if err == nil {
			if breaker != nil {
				breaker.RecordSuccess()
			}
			e.record(true, start)
			if attempt > 0 {
				e.logger.Info("operation succeeded after retry", zap.Int("attempt", attempt))
			}
			return result, nil
		}

		lastErr = err
		if breaker != nil {
			breaker.RecordFailure()
		}

		if !types.IsRetryable(err) {
			e.logger.Debug("error not retryable", zap.Error(err))
			e.record(false, start)
			return nil, err
		}
	}

	e.logger.Warn("retries exhausted",
		zap.Int("attempts", maxRetries+1),
		zap.Error(lastErr))
	e.record(false, start)
	return nil, lastErr
}

// attempt runs op once, applying the per-attempt timeout when configured.
func (e *Executor) attempt(ctx context.Context, op Operation) (any, error) {
	if e.config.AttemptTimeout <= 0 {
		return op(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, e.config.AttemptTimeout)
	defer cancel()
	return op(attemptCtx)
}

// delayFor returns the backoff delay after the given failed attempt index.
func (e *Executor) delayFor(failedAttempt int) time.Duration {
	idx := failedAttempt
	if idx >= len(e.config.Schedule) {
		idx = len(e.config.Schedule) - 1
	}
	delay := e.config.Schedule[idx]

	if e.config.Jitter && delay > 0 {
		jitter := float64(delay) * 0.25
		delay = time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
	}
	return delay
}

// record updates request metrics once per Execute call.
func (e *Executor) record(success bool, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordRequest(success, time.Since(start))
	}
}
