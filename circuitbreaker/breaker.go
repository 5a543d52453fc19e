// Package circuitbreaker implements a per-dependency failure gate with the
// classic Closed/Open/HalfOpen state machine. One breaker is created per named
// dependency key and lives for the process lifetime.
package circuitbreaker

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed allows all requests through.
	StateClosed State = iota
	// StateOpen rejects all requests until the recovery timeout elapses.
	StateOpen
	// StateHalfOpen allows a bounded number of probe requests.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config configures a circuit breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// a closed breaker open.
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`
	// RecoveryTimeout is how long an open breaker waits before allowing
	// half-open probes.
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`
	// HalfOpenMaxProbes bounds probes in half-open state; that many
	// consecutive successes close the breaker again.
	HalfOpenMaxProbes int `yaml:"half_open_max_probes" json:"half_open_max_probes"`
}

// DefaultConfig returns the default breaker configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:  5,
		RecoveryTimeout:   30 * time.Second,
		HalfOpenMaxProbes: 3,
	}
}

// StateChange describes a breaker state transition.
type StateChange struct {
	Key       string    `json:"key"`
	OldState  State     `json:"old_state"`
	NewState  State     `json:"new_state"`
	Timestamp time.Time `json:"timestamp"`
	Reason    string    `json:"reason"`
	Failures  int       `json:"failures"`
}

// StateChangeHandler receives breaker state transitions.
type StateChangeHandler func(change StateChange)

// CircuitBreaker gates calls to a single named dependency.
type CircuitBreaker struct {
	key     string
	config  Config
	onState StateChangeHandler
	logger  *zap.Logger

	mu              sync.Mutex
	state           State
	failures        int       // consecutive failures in closed state
	successes       int       // consecutive probe successes in half-open state
	lastFailureTime time.Time // set on every recorded failure
}

// New creates a circuit breaker for the given dependency key.
func New(key string, config Config, onState StateChangeHandler, logger *zap.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = 30 * time.Second
	}
	if config.HalfOpenMaxProbes <= 0 {
		config.HalfOpenMaxProbes = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		key:     key,
		config:  config,
		onState: onState,
		state:   StateClosed,
		logger:  logger.With(zap.String("breaker_key", key)),
	}
}

// CanExecute reports whether a request may proceed. In open state it also
// performs the Open -> HalfOpen transition once the recovery timeout has
// elapsed, resetting the probe success counter.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.lastFailureTime) >= cb.config.RecoveryTimeout {
			cb.transitionTo(StateHalfOpen, "recovery timeout elapsed")
			cb.successes = 0
			return true
		}
		return false

	case StateHalfOpen:
		// Bound the number of in-flight probes by the successes still
		// needed to close.
		return cb.successes < cb.config.HalfOpenMaxProbes

	default:
		return false
	}
}

// RecordSuccess records a successful call against the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenMaxProbes {
			cb.transitionTo(StateClosed, fmt.Sprintf("%d consecutive probe successes", cb.successes))
			cb.failures = 0
			cb.successes = 0
		}
	}
}

// RecordFailure records a failed call against the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(StateOpen, fmt.Sprintf("%d consecutive failures", cb.failures))
		}

	case StateHalfOpen:
		// Any probe failure reopens immediately.
		cb.successes = 0
		cb.transitionTo(StateOpen, "failure in half-open state")
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset forces the breaker back to closed and clears all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	oldState := cb.state
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	if oldState != StateClosed {
		cb.emit(oldState, StateClosed, "manual reset")
	}
}

// transitionTo changes state and emits the change. Must hold cb.mu.
func (cb *CircuitBreaker) transitionTo(newState State, reason string) {
	oldState := cb.state
	cb.state = newState

	cb.logger.Info("circuit breaker state change",
		zap.String("old_state", oldState.String()),
		zap.String("new_state", newState.String()),
		zap.String("reason", reason),
		zap.Int("failures", cb.failures))

	cb.emit(oldState, newState, reason)
}

// emit delivers a state change to the handler. Must hold cb.mu; the handler
// runs on its own goroutine to avoid deadlocks with breaker re-entry.
func (cb *CircuitBreaker) emit(oldState, newState State, reason string) {
	if cb.onState == nil {
		return
	}
	change := StateChange{
		Key:       cb.key,
		OldState:  oldState,
		NewState:  newState,
		Timestamp: time.Now(),
		Reason:    reason,
		Failures:  cb.failures,
	}
	go cb.onState(change)
}
