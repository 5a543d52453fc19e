package workflow

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/syncforge/types"
)

// Status is the lifecycle state of a workflow.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a terminal workflow state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Workflow owns a DAG of tasks. Task state is mutated only through Workflow
// methods; concurrent task completions from one scheduling round and status
// queries from other goroutines are serialized by the internal lock.
type Workflow struct {
	id          string
	name        string
	description string

	mu          sync.RWMutex
	tasks       map[string]*Task
	order       []string // declaration order
	status      Status
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
}

// New builds a workflow from task definitions and validates the dependency
// graph: IDs must be non-empty and unique, dependencies must reference known
// task IDs, and the graph must be acyclic. A validation failure creates no
// workflow.
func New(name, description string, defs []TaskDef) (*Workflow, error) {
	if len(defs) == 0 {
		return nil, types.NewError(types.ErrValidation, "workflow has no tasks")
	}

	tasks := make(map[string]*Task, len(defs))
	order := make([]string, 0, len(defs))

	for i, def := range defs {
		if def.ID == "" {
			return nil, types.NewErrorf(types.ErrValidation, "task at position %d has no ID", i)
		}
		if _, exists := tasks[def.ID]; exists {
			return nil, types.NewErrorf(types.ErrValidation, "duplicate task ID %q", def.ID)
		}
		tasks[def.ID] = &Task{
			ID:           def.ID,
			Type:         def.Type,
			AgentName:    def.AgentName,
			Platform:     def.Platform,
			Priority:     def.Priority,
			Parameters:   def.Parameters,
			Dependencies: append([]string(nil), def.Dependencies...),
			Status:       TaskPending,
			index:        i,
		}
		order = append(order, def.ID)
	}

	for _, task := range tasks {
		for _, dep := range task.Dependencies {
			if _, ok := tasks[dep]; !ok {
				return nil, types.NewErrorf(types.ErrValidation,
					"task %q depends on unknown task %q", task.ID, dep)
			}
		}
	}

	if cycleNode := detectCycle(tasks); cycleNode != "" {
		return nil, types.NewErrorf(types.ErrValidation,
			"dependency cycle detected involving task %q", cycleNode)
	}

	return &Workflow{
		id:          uuid.NewString(),
		name:        name,
		description: description,
		tasks:       tasks,
		order:       order,
		status:      StatusPending,
		createdAt:   time.Now(),
	}, nil
}

// detectCycle runs a DFS with a recursion stack over the dependency edges.
// It returns the ID of a node on a cycle, or "" when the graph is acyclic.
func detectCycle(tasks map[string]*Task) string {
	visited := make(map[string]bool, len(tasks))
	recStack := make(map[string]bool, len(tasks))

	var visit func(id string) bool
	visit = func(id string) bool {
		visited[id] = true
		recStack[id] = true
		for _, dep := range tasks[id].Dependencies {
			if !visited[dep] {
				if visit(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}
		recStack[id] = false
		return false
	}

	for id := range tasks {
		if !visited[id] {
			if visit(id) {
				return id
			}
		}
	}
	return ""
}

// ID returns the workflow ID.
func (w *Workflow) ID() string { return w.id }

// Name returns the workflow name.
func (w *Workflow) Name() string { return w.name }

// Description returns the workflow description.
func (w *Workflow) Description() string { return w.description }

// Status returns the current workflow status.
func (w *Workflow) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

// CreatedAt returns the creation time.
func (w *Workflow) CreatedAt() time.Time { return w.createdAt }

// StartedAt returns when execution started (zero before Start).
func (w *Workflow) StartedAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.startedAt
}

// CompletedAt returns when the workflow reached a terminal state.
func (w *Workflow) CompletedAt() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.completedAt
}

// TaskCount returns the number of tasks.
func (w *Workflow) TaskCount() int {
	return len(w.order)
}

// Task returns a copy of the task with the given ID.
func (w *Workflow) Task(id string) (Task, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	t, ok := w.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Tasks returns copies of all tasks in declaration order.
func (w *Workflow) Tasks() []Task {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Task, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, *w.tasks[id])
	}
	return out
}

// Start moves the workflow to running. It fails when the workflow is already
// running or has reached a terminal state.
func (w *Workflow) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status.Terminal() {
		return types.NewErrorf(types.ErrWorkflowTerminal,
			"workflow %s already %s", w.id, w.status)
	}
	if w.status == StatusRunning {
		return types.NewErrorf(types.ErrWorkflowRunning,
			"workflow %s is already running", w.id)
	}
	w.status = StatusRunning
	w.startedAt = time.Now()
	return nil
}

// ReadyTasks returns copies of every task that is pending with all
// dependencies completed, ordered by priority (highest first) and declaration
// order for equal priorities. Tasks with no dependencies are ready
// immediately.
func (w *Workflow) ReadyTasks() []Task {
	w.mu.RLock()
	defer w.mu.RUnlock()

	var ready []*Task
	for _, id := range w.order {
		t := w.tasks[id]
		if t.Status != TaskPending {
			continue
		}
		ok := true
		for _, dep := range t.Dependencies {
			if w.tasks[dep].Status != TaskCompleted {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, t)
		}
	}

	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].index < ready[j].index
	})

	out := make([]Task, 0, len(ready))
	for _, t := range ready {
		out = append(out, *t)
	}
	return out
}

// MarkRunning transitions a task to running (through ready, which exists only
// transiently between dependency resolution and dispatch).
func (w *Workflow) MarkRunning(taskID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.tasks[taskID]; ok && !t.Status.Terminal() {
		t.Status = TaskRunning
	}
}

// CompleteTask records a successful task result.
func (w *Workflow) CompleteTask(taskID string, result map[string]any, retries int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.tasks[taskID]; ok {
		t.Status = TaskCompleted
		t.Result = result
		t.Error = ""
		t.RetryCount = retries
	}
}

// FailTask records a task failure.
func (w *Workflow) FailTask(taskID string, errMsg string, retries int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.tasks[taskID]; ok {
		t.Status = TaskFailed
		t.Error = errMsg
		t.RetryCount = retries
	}
}

// PropagateSkips marks every pending task whose dependency ended failed,
// cancelled, or skipped as skipped, transitively. It returns the IDs of the
// newly skipped tasks in declaration order.
func (w *Workflow) PropagateSkips() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var skipped []string
	for changed := true; changed; {
		changed = false
		for _, id := range w.order {
			t := w.tasks[id]
			if t.Status != TaskPending {
				continue
			}
			for _, dep := range t.Dependencies {
				switch w.tasks[dep].Status {
				case TaskFailed, TaskCancelled, TaskSkipped:
					t.Status = TaskSkipped
					skipped = append(skipped, id)
					changed = true
				}
				if t.Status == TaskSkipped {
					break
				}
			}
		}
	}
	return skipped
}

// Cancel moves the workflow and every not-yet-running task to cancelled.
// Running tasks are left to finish on their own. It returns false without
// changing anything when the workflow is already terminal.
func (w *Workflow) Cancel() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status.Terminal() {
		return false
	}
	for _, t := range w.tasks {
		if t.Status == TaskPending || t.Status == TaskReady {
			t.Status = TaskCancelled
		}
	}
	w.status = StatusCancelled
	w.completedAt = time.Now()
	return true
}

// Cancelled reports whether the workflow has been cancelled.
func (w *Workflow) Cancelled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status == StatusCancelled
}

// Finish settles the final workflow status once no more tasks can become
// ready: failed when any task failed, completed otherwise. A cancelled
// workflow keeps its status.
func (w *Workflow) Finish() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.status == StatusCancelled {
		return w.status
	}

	final := StatusCompleted
	for _, t := range w.tasks {
		if t.Status == TaskFailed {
			final = StatusFailed
			break
		}
	}
	w.status = final
	w.completedAt = time.Now()
	return final
}

// StatusSummary returns the workflow status and the number of tasks in each
// status.
func (w *Workflow) StatusSummary() Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()

	counts := make(map[TaskStatus]int)
	for _, t := range w.tasks {
		counts[t.Status]++
	}
	return Summary{
		WorkflowID:  w.id,
		Name:        w.name,
		Status:      w.status,
		TaskCounts:  counts,
		TotalTasks:  len(w.tasks),
		CreatedAt:   w.createdAt,
		StartedAt:   w.startedAt,
		CompletedAt: w.completedAt,
	}
}

// Summary is a point-in-time view of a workflow's progress.
type Summary struct {
	WorkflowID  string             `json:"workflow_id"`
	Name        string             `json:"name"`
	Status      Status             `json:"status"`
	TaskCounts  map[TaskStatus]int `json:"task_counts"`
	TotalTasks  int                `json:"total_tasks"`
	CreatedAt   time.Time          `json:"created_at"`
	StartedAt   time.Time          `json:"started_at,omitempty"`
	CompletedAt time.Time          `json:"completed_at,omitempty"`
}

// Duration returns the wall time between start and completion, or zero when
// the workflow has not finished.
func (w *Workflow) Duration() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.startedAt.IsZero() || w.completedAt.IsZero() {
		return 0
	}
	return w.completedAt.Sub(w.startedAt)
}
