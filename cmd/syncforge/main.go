// syncforge command line entry point.
//
// Usage:
//
//	syncforge run                          # run the full_sync template
//	syncforge run --config syncforge.yaml  # with a config file
//	syncforge run --template validation_only
//	syncforge templates                    # list built-in templates
//	syncforge version                      # show version info
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/syncforge/circuitbreaker"
	"github.com/BaSui01/syncforge/config"
	"github.com/BaSui01/syncforge/coordinator"
	"github.com/BaSui01/syncforge/event"
	imetrics "github.com/BaSui01/syncforge/internal/metrics"
	"github.com/BaSui01/syncforge/retry"
)

// Version information injected at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runWorkflow(os.Args[2:])
	case "templates":
		printTemplates()
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runWorkflow(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	template := fs.String("template", coordinator.TemplateFullSync, "Workflow template to run")
	metricsAddr := fs.String("metrics-addr", "", "Metrics listen address (overrides config)")
	fs.Parse(args)

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = *metricsAddr
	}

	logger := config.BuildLogger(cfg.Log)
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	collector := imetrics.NewCollector(cfg.Metrics.Namespace, registry, logger)
	if cfg.Metrics.Enabled {
		startMetricsServer(cfg.Metrics.Addr, registry, logger)
	}

	c := coordinator.New(coordinatorConfig(cfg), collector, logger)
	c.Start()
	defer c.Stop()

	registerDemoAgents(c, logger)
	logEvents(c, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wf, err := c.CreateWorkflow(*template, "manual run", coordinator.CreateOptions{Template: *template})
	if err != nil {
		logger.Fatal("Failed to create workflow", zap.Error(err))
	}

	result, err := c.ExecuteWorkflow(ctx, wf.ID(), nil)
	if err != nil {
		logger.Fatal("Workflow execution failed", zap.Error(err))
	}

	logger.Info("Workflow finished",
		zap.String("workflow_id", result.WorkflowID),
		zap.String("status", string(result.Status)),
		zap.Int("completed", result.CompletedTasks),
		zap.Int("failed", result.FailedTasks),
		zap.Int("skipped", result.SkippedTasks),
		zap.Duration("duration", result.Duration),
	)
	if !result.Success {
		logger.Error("Workflow did not complete", zap.String("error", result.Error))
		os.Exit(1)
	}
}

// coordinatorConfig maps the file configuration onto the coordinator's
// runtime configuration.
func coordinatorConfig(cfg *config.Config) coordinator.Config {
	schedule := make([]time.Duration, len(cfg.Retry.Schedule))
	for i, d := range cfg.Retry.Schedule {
		schedule[i] = d.Std()
	}
	return coordinator.Config{
		MaxRetries:         cfg.Scheduler.MaxRetries,
		MaxConcurrentTasks: cfg.Scheduler.MaxConcurrentTasks,
		EventQueueSize:     cfg.Scheduler.EventQueueSize,
		Breaker: circuitbreaker.Config{
			FailureThreshold:  cfg.Breaker.FailureThreshold,
			RecoveryTimeout:   cfg.Breaker.RecoveryTimeout.Std(),
			HalfOpenMaxProbes: cfg.Breaker.HalfOpenMaxProbes,
		},
		Retry: retry.Config{
			Schedule:       schedule,
			AttemptTimeout: cfg.Retry.AttemptTimeout.Std(),
			Jitter:         cfg.Retry.Jitter,
		},
	}
}

// registerDemoAgents installs simulated platform agents so the built-in
// templates can run end to end without external services.
func registerDemoAgents(c *coordinator.Coordinator, logger *zap.Logger) {
	simulate := func(name string, delay time.Duration, output map[string]any) coordinator.AgentFunc {
		return func(ctx context.Context, taskType string, params map[string]any) (map[string]any, error) {
			logger.Info("Agent executing",
				zap.String("agent", name),
				zap.String("task_type", taskType),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			return output, nil
		}
	}

	c.RegisterAgent("github", simulate("github", 200*time.Millisecond,
		map[string]any{"files_pulled": 12}))
	c.RegisterAgent("validator", simulate("validator", 100*time.Millisecond,
		map[string]any{"schemas_valid": true}))
	c.RegisterAgent("studio_bridge", simulate("studio_bridge", 300*time.Millisecond,
		map[string]any{"objects_pushed": 12}))
	c.RegisterAgent("pusher", simulate("pusher", 50*time.Millisecond,
		map[string]any{"channels_notified": 3}))
}

// logEvents subscribes a handler that mirrors every workflow event into the
// log so a run is observable without a metrics scraper.
func logEvents(c *coordinator.Coordinator, logger *zap.Logger) {
	handler := func(evt event.IntegrationEvent) error {
		logger.Info("Event",
			zap.String("event_type", evt.EventType),
			zap.String("event_id", evt.EventID),
			zap.String("correlation_id", evt.CorrelationID),
		)
		return nil
	}
	for _, eventType := range []string{
		event.TypeWorkflowStarted,
		event.TypeWorkflowCompleted,
		event.TypeWorkflowCancelled,
		event.TypeTaskCompleted,
		event.TypeTaskFailed,
		event.TypeTaskSkipped,
	} {
		c.EventBus().Subscribe(eventType, handler)
	}
}

func startMetricsServer(addr string, registry *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		logger.Info("Metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()
}

func printTemplates() {
	fmt.Println("Built-in workflow templates:")
	for _, name := range coordinator.TemplateNames() {
		fmt.Printf("  %s\n", name)
	}
}

func printVersion() {
	fmt.Printf("syncforge %s\n", Version)
	fmt.Printf("  build time: %s\n", BuildTime)
	fmt.Printf("  git commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`syncforge - fault-tolerant cross-platform workflow orchestration

Usage:
  syncforge <command> [options]

Commands:
  run         Run a workflow template with the demo agents
  templates   List built-in workflow templates
  version     Show version information
  help        Show this help

Examples:
  syncforge run
  syncforge run --config /etc/syncforge/config.yaml
  syncforge run --template validation_only --metrics-addr :9090
  syncforge version`)
}
