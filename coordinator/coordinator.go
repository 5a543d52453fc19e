// Package coordinator implements the workflow orchestration engine: it builds
// workflows from templates or explicit task lists, resolves ready tasks from
// the dependency graph, and dispatches them to registered agents behind a
// retry executor and per-agent circuit breakers.
package coordinator

import (
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/syncforge/circuitbreaker"
	"github.com/BaSui01/syncforge/event"
	imetrics "github.com/BaSui01/syncforge/internal/metrics"
	"github.com/BaSui01/syncforge/metrics"
	"github.com/BaSui01/syncforge/retry"
	"github.com/BaSui01/syncforge/types"
	"github.com/BaSui01/syncforge/workflow"
)

// Config tunes the coordinator's failure handling and scheduling.
type Config struct {
	// MaxRetries is the retry budget per task dispatch.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// MaxConcurrentTasks bounds concurrently running tasks within one
	// scheduling round. Zero means unbounded.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks" json:"max_concurrent_tasks"`
	// EventQueueSize is the event bus queue capacity.
	EventQueueSize int `yaml:"event_queue_size" json:"event_queue_size"`
	// Breaker configures the per-agent circuit breakers.
	Breaker circuitbreaker.Config `yaml:"breaker" json:"breaker"`
	// Retry configures the retry executor backoff.
	Retry retry.Config `yaml:"retry" json:"retry"`
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:         3,
		MaxConcurrentTasks: 8,
		EventQueueSize:     1024,
		Breaker:            circuitbreaker.DefaultConfig(),
		Retry:              retry.DefaultConfig(),
	}
}

// Coordinator owns the workflow store, the agent registry, and the shared
// failure-handling machinery. Construct one with New and release it with
// Stop; there is no implicit global instance.
type Coordinator struct {
	config    Config
	registry  *agentRegistry
	breakers  *circuitbreaker.Registry
	executor  *retry.Executor
	bus       *event.Bus
	metrics   *metrics.Metrics
	collector *imetrics.Collector
	logger    *zap.Logger

	mu        sync.RWMutex
	workflows map[string]*workflow.Workflow

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a coordinator. collector may be nil to disable Prometheus
// instrumentation; logger may be nil for a no-op logger.
func New(config Config, collector *imetrics.Collector, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "coordinator"))

	m := metrics.New()

	var onState circuitbreaker.StateChangeHandler
	if collector != nil {
		onState = func(change circuitbreaker.StateChange) {
			collector.RecordBreakerTransition(change.Key,
				change.OldState.String(), change.NewState.String())
		}
	}

	return &Coordinator{
		config:    config,
		registry:  newAgentRegistry(),
		breakers:  circuitbreaker.NewRegistry(config.Breaker, onState, logger),
		executor:  retry.NewExecutor(config.Retry, m, logger),
		bus:       event.NewBus(config.EventQueueSize, m, logger),
		metrics:   m,
		collector: collector,
		logger:    logger,
		workflows: make(map[string]*workflow.Workflow),
	}
}

// Start launches the event dispatch loop. Idempotent.
func (c *Coordinator) Start() {
	c.startOnce.Do(func() {
		go c.bus.Run()
		c.logger.Info("coordinator started")
	})
}

// Stop shuts down the event bus. Idempotent.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		c.bus.Stop()
		c.logger.Info("coordinator stopped")
	})
}

// RegisterAgent registers a named handler. A later registration for the same
// name overwrites the earlier one.
func (c *Coordinator) RegisterAgent(name string, agent Agent) {
	c.registry.register(name, agent)
	c.logger.Info("agent registered", zap.String("agent", name))
}

// AgentNames returns the names of all registered agents, sorted.
func (c *Coordinator) AgentNames() []string {
	return c.registry.names()
}

// EventBus returns the coordinator's event bus for subscribing to workflow
// and task lifecycle events.
func (c *Coordinator) EventBus() *event.Bus {
	return c.bus
}

// Metrics returns the process-lifetime metrics accumulator.
func (c *Coordinator) Metrics() *metrics.Metrics {
	return c.metrics
}

// BreakerStates returns the current state of every per-agent breaker.
func (c *Coordinator) BreakerStates() map[string]circuitbreaker.State {
	return c.breakers.States()
}

// CreateOptions selects the task source for CreateWorkflow: exactly one of
// Template or Tasks must be set.
type CreateOptions struct {
	// Template names a built-in template to expand.
	Template string
	// Tasks supplies explicit task definitions with caller-assigned IDs.
	Tasks []workflow.TaskDef
}

// CreateWorkflow builds and stores a workflow. Unknown template names and
// invalid task graphs fail without creating anything.
func (c *Coordinator) CreateWorkflow(name, description string, opts CreateOptions) (*workflow.Workflow, error) {
	var defs []workflow.TaskDef

	switch {
	case opts.Template != "" && len(opts.Tasks) > 0:
		return nil, types.NewError(types.ErrValidation,
			"specify either a template or explicit tasks, not both")
	case opts.Template != "":
		expanded, ok := templateTasks(opts.Template)
		if !ok {
			return nil, types.NewErrorf(types.ErrUnknownTemplate,
				"unknown workflow template %q", opts.Template)
		}
		defs = expanded
	case len(opts.Tasks) > 0:
		defs = opts.Tasks
	default:
		return nil, types.NewError(types.ErrValidation,
			"workflow needs a template or explicit tasks")
	}

	wf, err := workflow.New(name, description, defs)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.workflows[wf.ID()] = wf
	c.mu.Unlock()

	c.logger.Info("workflow created",
		zap.String("workflow_id", wf.ID()),
		zap.String("name", name),
		zap.String("template", opts.Template),
		zap.Int("tasks", wf.TaskCount()))

	return wf, nil
}

// Workflow returns the stored workflow with the given ID.
func (c *Coordinator) Workflow(id string) (*workflow.Workflow, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	wf, ok := c.workflows[id]
	if !ok {
		return nil, types.NewErrorf(types.ErrNotFound, "workflow %s not found", id)
	}
	return wf, nil
}

// GetWorkflowStatus returns the workflow status with per-status task counts.
func (c *Coordinator) GetWorkflowStatus(id string) (workflow.Summary, error) {
	wf, err := c.Workflow(id)
	if err != nil {
		return workflow.Summary{}, err
	}
	return wf.StatusSummary(), nil
}

// CancelWorkflow cancels a workflow: pending tasks move to cancelled, running
// tasks finish on their own. Cancelling an already-terminal workflow is a
// no-op success.
func (c *Coordinator) CancelWorkflow(id string) error {
	wf, err := c.Workflow(id)
	if err != nil {
		return err
	}

	if wf.Cancel() {
		c.logger.Info("workflow cancelled", zap.String("workflow_id", id))
		c.bus.Publish(c.workflowEvent(event.TypeWorkflowCancelled, wf))
	}
	return nil
}

// RemoveWorkflow deletes a workflow from the store.
func (c *Coordinator) RemoveWorkflow(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.workflows[id]; !ok {
		return types.NewErrorf(types.ErrNotFound, "workflow %s not found", id)
	}
	delete(c.workflows, id)
	return nil
}
