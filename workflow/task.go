package workflow

// TaskStatus is the lifecycle state of a single task.
type TaskStatus string

const (
	// TaskPending is waiting for its dependencies to complete.
	TaskPending TaskStatus = "pending"
	// TaskReady has all dependencies completed and is eligible to run.
	TaskReady TaskStatus = "ready"
	// TaskRunning is currently executing.
	TaskRunning TaskStatus = "running"
	// TaskCompleted finished successfully.
	TaskCompleted TaskStatus = "completed"
	// TaskFailed finished with an error after exhausting retries.
	TaskFailed TaskStatus = "failed"
	// TaskSkipped was never run because an upstream dependency failed
	// or was cancelled.
	TaskSkipped TaskStatus = "skipped"
	// TaskCancelled was cancelled before it could run.
	TaskCancelled TaskStatus = "cancelled"
)

// Terminal reports whether the status is a terminal task state.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskSkipped, TaskCancelled:
		return true
	default:
		return false
	}
}

// Priority orders ready tasks within a scheduling round.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// TaskDef describes one task when creating a workflow. IDs are assigned by
// the caller and referenced explicitly in Dependencies; the engine never
// generates positional IDs.
type TaskDef struct {
	ID           string         `json:"id" yaml:"id"`
	Type         string         `json:"type" yaml:"type"`
	AgentName    string         `json:"agent_name" yaml:"agent_name"`
	Platform     string         `json:"platform,omitempty" yaml:"platform,omitempty"`
	Priority     Priority       `json:"priority" yaml:"priority"`
	Parameters   map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// Task is one node in a workflow's dependency graph. Values returned from
// Workflow methods are copies; mutations go through the Workflow so the
// scheduling loop remains the single writer.
type Task struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	AgentName    string         `json:"agent_name"`
	Platform     string         `json:"platform,omitempty"`
	Priority     Priority       `json:"priority"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Status       TaskStatus     `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	Error        string         `json:"error,omitempty"`
	RetryCount   int            `json:"retry_count"`

	// index is the declaration order, the tie-break for equal priorities.
	index int
}
