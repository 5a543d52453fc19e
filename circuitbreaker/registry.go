package circuitbreaker

import (
	"sync"

	"go.uber.org/zap"
)

// Registry manages one breaker per dependency key. Multiple tasks dispatched
// against the same agent share the same breaker instance.
type Registry struct {
	config  Config
	onState StateChangeHandler
	logger  *zap.Logger

	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates a breaker registry. Every breaker it creates uses the
// same config and state-change handler.
func NewRegistry(config Config, onState StateChangeHandler, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		config:   config,
		onState:  onState,
		logger:   logger,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// GetOrCreate returns the breaker for key, creating it on first use.
func (r *Registry) GetOrCreate(key string) *CircuitBreaker {
	r.mu.RLock()
	if cb, ok := r.breakers[key]; ok {
		r.mu.RUnlock()
		return cb
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}

	cb := New(key, r.config, r.onState, r.logger)
	r.breakers[key] = cb
	return cb
}

// States returns a snapshot of every registered breaker's state.
func (r *Registry) States() map[string]State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make(map[string]State, len(r.breakers))
	for key, cb := range r.breakers {
		states[key] = cb.State()
	}
	return states
}

// ResetAll resets every registered breaker to closed.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cb := range r.breakers {
		cb.Reset()
	}
}
