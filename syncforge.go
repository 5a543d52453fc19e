// Package syncforge provides a top-level convenience entry point for running
// workflows with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/syncforge"
//
//	c := syncforge.New()
//	c.Start()
//	defer c.Stop()
//
//	c.RegisterAgent("github", myAgent)
//	wf, err := c.CreateWorkflow("sync", "", syncforge.CreateOptions{
//	    Template: syncforge.TemplateFullSync,
//	})
//	result, err := c.ExecuteWorkflow(ctx, wf.ID(), nil)
//
// This is a thin wrapper around [coordinator.New] with default configuration;
// use the coordinator package directly for custom wiring.
package syncforge

import (
	"go.uber.org/zap"

	"github.com/BaSui01/syncforge/coordinator"
)

// Re-export the coordinator surface so simple callers never need to import
// subpackages.

// Coordinator orchestrates workflow execution.
type Coordinator = coordinator.Coordinator

// Config configures a coordinator.
type Config = coordinator.Config

// CreateOptions selects the task source for a new workflow.
type CreateOptions = coordinator.CreateOptions

// AgentFunc adapts a function to the coordinator's Agent interface.
type AgentFunc = coordinator.AgentFunc

// Built-in workflow template names.
const (
	TemplateFullSync       = coordinator.TemplateFullSync
	TemplateValidationOnly = coordinator.TemplateValidationOnly
)

// New creates a coordinator with default configuration and a production
// logger. The returned coordinator still needs Start before executing
// workflows.
func New() *Coordinator {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	return coordinator.New(coordinator.DefaultConfig(), nil, logger)
}

// NewWithConfig creates a coordinator with explicit configuration.
func NewWithConfig(cfg Config, logger *zap.Logger) *Coordinator {
	return coordinator.New(cfg, nil, logger)
}
