// Package workflow defines the task and workflow graph model: a directed
// acyclic graph of tasks with dependencies, priorities, and lifecycle status.
//
// A workflow is built from caller-supplied task definitions and validated at
// creation time (unique IDs, known dependency references, no cycles). The
// coordinator drives execution by repeatedly asking for the ready set
// (pending tasks whose dependencies have all completed) and recording task
// outcomes back through Workflow methods, which serialize access so that
// concurrent dispatches within one scheduling round stay consistent.
package workflow
