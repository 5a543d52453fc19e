package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/syncforge/event"
	"github.com/BaSui01/syncforge/types"
	"github.com/BaSui01/syncforge/workflow"
)

// ExecutionResult is the structured outcome of ExecuteWorkflow. Task-level
// failures are reported here, not as a call error.
type ExecutionResult struct {
	WorkflowID     string          `json:"workflow_id"`
	Status         workflow.Status `json:"status"`
	Success        bool            `json:"success"`
	CompletedTasks int             `json:"completed_tasks"`
	FailedTasks    int             `json:"failed_tasks"`
	SkippedTasks   int             `json:"skipped_tasks"`
	Error          string          `json:"error,omitempty"`
	Duration       time.Duration   `json:"duration"`
}

// ExecuteWorkflow runs the workflow's tasks in dependency order. Within each
// scheduling round, ready tasks are dispatched concurrently in priority
// order; the next round's ready set is computed only after every dispatch
// from the current round has settled, so a task never starts before its
// dependencies have fully completed.
//
// params are merged over each task's own parameters for the dispatch. The
// call fails hard only for unknown IDs and terminal/already-running
// workflows; task failures are contained to the result.
func (c *Coordinator) ExecuteWorkflow(ctx context.Context, id string, params map[string]any) (*ExecutionResult, error) {
	wf, err := c.Workflow(id)
	if err != nil {
		return nil, err
	}

	if err := wf.Start(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := c.logger.With(zap.String("workflow_id", id))
	logger.Info("workflow execution started",
		zap.String("name", wf.Name()),
		zap.Int("tasks", wf.TaskCount()))

	c.bus.Publish(c.workflowEvent(event.TypeWorkflowStarted, wf))

	// firstFailure keeps the chronologically first task error for the
	// result summary.
	var failMu sync.Mutex
	var firstFailure string
	recordFailure := func(msg string) {
		failMu.Lock()
		if firstFailure == "" {
			firstFailure = msg
		}
		failMu.Unlock()
	}

	for {
		if wf.Cancelled() || ctx.Err() != nil {
			break
		}

		ready := wf.ReadyTasks()
		if len(ready) == 0 {
			break
		}

		// Claim the whole round before dispatching so the ready set
		// stays consistent while tasks run.
		for _, task := range ready {
			wf.MarkRunning(task.ID)
		}

		var g errgroup.Group
		if c.config.MaxConcurrentTasks > 0 {
			g.SetLimit(c.config.MaxConcurrentTasks)
		}
		for _, task := range ready {
			task := task
			g.Go(func() error {
				c.runTask(ctx, wf, task, params, recordFailure)
				return nil
			})
		}
		_ = g.Wait()

		for _, skippedID := range wf.PropagateSkips() {
			c.bus.Publish(c.taskEvent(event.TypeTaskSkipped, wf, skippedID))
			if c.collector != nil {
				c.collector.RecordTaskExecution(taskAgent(wf, skippedID), string(workflow.TaskSkipped), 0)
			}
		}
	}

	if ctx.Err() != nil {
		// Caller abandoned the execution; settle remaining tasks so
		// every task ends in a terminal status.
		wf.Cancel()
	}

	status := wf.Finish()
	summary := wf.StatusSummary()
	duration := time.Since(start)

	if c.collector != nil {
		c.collector.RecordWorkflow(string(status))
	}
	if status != workflow.StatusCancelled {
		// Cancellation already published its own event.
		c.bus.Publish(c.workflowEvent(event.TypeWorkflowCompleted, wf))
	}

	result := &ExecutionResult{
		WorkflowID:     id,
		Status:         status,
		Success:        status == workflow.StatusCompleted,
		CompletedTasks: summary.TaskCounts[workflow.TaskCompleted],
		FailedTasks:    summary.TaskCounts[workflow.TaskFailed],
		SkippedTasks:   summary.TaskCounts[workflow.TaskSkipped],
		Error:          firstFailure,
		Duration:       duration,
	}

	logger.Info("workflow execution finished",
		zap.String("status", string(status)),
		zap.Int("completed_tasks", result.CompletedTasks),
		zap.Int("failed_tasks", result.FailedTasks),
		zap.Duration("duration", duration))

	return result, nil
}

// runTask dispatches one task through the retry executor and records the
// outcome on the workflow.
func (c *Coordinator) runTask(ctx context.Context, wf *workflow.Workflow, task workflow.Task, callParams map[string]any, recordFailure func(string)) {
	logger := c.logger.With(
		zap.String("workflow_id", wf.ID()),
		zap.String("task_id", task.ID),
		zap.String("agent", task.AgentName))

	start := time.Now()

	agent, ok := c.registry.get(task.AgentName)
	if !ok {
		err := types.NewErrorf(types.ErrAgentNotRegistered,
			"no agent registered for %q", task.AgentName)
		logger.Error("task dispatch failed", zap.Error(err))
		wf.FailTask(task.ID, err.Error(), 0)
		recordFailure(err.Error())
		c.settleTask(wf, task, string(workflow.TaskFailed), time.Since(start), 0)
		return
	}

	params := mergeParams(task.Parameters, callParams)
	breaker := c.breakers.GetOrCreate(task.AgentName)

	var attempts int
	result, err := c.executor.Execute(ctx, func(ctx context.Context) (any, error) {
		attempts++
		return agent.Execute(ctx, task.Type, params)
	}, c.config.MaxRetries, breaker)

	retries := attempts - 1
	if retries < 0 {
		retries = 0
	}

	if err != nil {
		logger.Warn("task failed",
			zap.Int("attempts", attempts),
			zap.Error(err))
		wf.FailTask(task.ID, err.Error(), retries)
		recordFailure(err.Error())
		c.settleTask(wf, task, string(workflow.TaskFailed), time.Since(start), retries)
		c.bus.Publish(c.taskEvent(event.TypeTaskFailed, wf, task.ID))
		return
	}

	output, _ := result.(map[string]any)
	wf.CompleteTask(task.ID, output, retries)
	c.settleTask(wf, task, string(workflow.TaskCompleted), time.Since(start), retries)
	c.bus.Publish(c.taskEvent(event.TypeTaskCompleted, wf, task.ID))

	logger.Debug("task completed",
		zap.Int("attempts", attempts),
		zap.Duration("duration", time.Since(start)))
}

// settleTask records collector metrics for a settled dispatch.
func (c *Coordinator) settleTask(wf *workflow.Workflow, task workflow.Task, status string, duration time.Duration, retries int) {
	if c.collector == nil {
		return
	}
	c.collector.RecordTaskExecution(task.AgentName, status, duration)
	c.collector.RecordRetryAttempts(task.AgentName, retries)
}

// workflowEvent builds a lifecycle event for a workflow.
func (c *Coordinator) workflowEvent(eventType string, wf *workflow.Workflow) event.IntegrationEvent {
	e := event.NewEvent(eventType, "coordinator", map[string]any{
		"workflow_id": wf.ID(),
		"name":        wf.Name(),
		"status":      string(wf.Status()),
	})
	e.CorrelationID = wf.ID()
	return e
}

// taskEvent builds a lifecycle event for a task.
func (c *Coordinator) taskEvent(eventType string, wf *workflow.Workflow, taskID string) event.IntegrationEvent {
	payload := map[string]any{
		"workflow_id": wf.ID(),
		"task_id":     taskID,
	}
	if task, ok := wf.Task(taskID); ok {
		payload["agent"] = task.AgentName
		payload["status"] = string(task.Status)
		if task.Error != "" {
			payload["error"] = task.Error
		}
	}
	e := event.NewEvent(eventType, "coordinator", payload)
	e.CorrelationID = wf.ID()
	return e
}

// taskAgent looks up the agent name for a task ID.
func taskAgent(wf *workflow.Workflow, taskID string) string {
	if task, ok := wf.Task(taskID); ok {
		return task.AgentName
	}
	return ""
}

// mergeParams overlays call-level parameters on the task's own parameters.
func mergeParams(taskParams, callParams map[string]any) map[string]any {
	if len(callParams) == 0 {
		return taskParams
	}
	merged := make(map[string]any, len(taskParams)+len(callParams))
	for k, v := range taskParams {
		merged[k] = v
	}
	for k, v := range callParams {
		merged[k] = v
	}
	return merged
}
