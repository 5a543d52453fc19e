package coordinator

import (
	"context"
	"sort"
	"sync"
)

// Agent is the single contract every external collaborator implements. The
// scheduler assumes nothing about an agent's internals, only this result
// shape.
type Agent interface {
	Execute(ctx context.Context, taskType string, params map[string]any) (map[string]any, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, taskType string, params map[string]any) (map[string]any, error)

// Execute implements Agent.
func (f AgentFunc) Execute(ctx context.Context, taskType string, params map[string]any) (map[string]any, error) {
	return f(ctx, taskType, params)
}

// agentRegistry maps agent names to handlers. Registration is last writer
// wins; lookups are read-mostly.
type agentRegistry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

func newAgentRegistry() *agentRegistry {
	return &agentRegistry{agents: make(map[string]Agent)}
}

func (r *agentRegistry) register(name string, agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[name] = agent
}

func (r *agentRegistry) get(name string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[name]
	return agent, ok
}

func (r *agentRegistry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
