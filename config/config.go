// Package config loads syncforge configuration from defaults, an optional
// YAML file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// or from plain integers interpreted as nanoseconds.
type Duration time.Duration

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if parsed, err := time.ParseDuration(value.Value); err == nil {
		*d = Duration(parsed)
		return nil
	}
	nanos, err := strconv.ParseInt(value.Value, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = Duration(nanos)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the complete syncforge configuration.
type Config struct {
	// Scheduler controls workflow execution.
	Scheduler SchedulerConfig `yaml:"scheduler" env:"SCHEDULER"`

	// Breaker is the default per-agent circuit breaker configuration.
	Breaker BreakerConfig `yaml:"breaker" env:"BREAKER"`

	// Retry controls task retry behavior.
	Retry RetryConfig `yaml:"retry" env:"RETRY"`

	// Log is the logging configuration.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics is the Prometheus exposition configuration.
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`
}

// SchedulerConfig controls the coordinator's execution loop.
type SchedulerConfig struct {
	// MaxRetries is the per-task retry budget.
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// MaxConcurrentTasks bounds tasks dispatched in parallel per round.
	// Zero means unbounded.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks" env:"MAX_CONCURRENT_TASKS"`
	// EventQueueSize is the event bus queue capacity.
	EventQueueSize int `yaml:"event_queue_size" env:"EVENT_QUEUE_SIZE"`
}

// BreakerConfig configures per-agent circuit breakers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive failure count that opens the breaker.
	FailureThreshold int `yaml:"failure_threshold" env:"FAILURE_THRESHOLD"`
	// RecoveryTimeout is how long an open breaker waits before probing.
	RecoveryTimeout Duration `yaml:"recovery_timeout" env:"RECOVERY_TIMEOUT"`
	// HalfOpenMaxProbes bounds half-open probes and sets the close threshold.
	HalfOpenMaxProbes int `yaml:"half_open_max_probes" env:"HALF_OPEN_MAX_PROBES"`
}

// RetryConfig configures the retry executor.
type RetryConfig struct {
	// Schedule is the backoff delay per failed attempt. Empty uses the
	// built-in 1s/2s/4s/8s/16s schedule.
	Schedule []Duration `yaml:"schedule" env:"-"`
	// AttemptTimeout bounds a single attempt. Zero disables the bound.
	AttemptTimeout Duration `yaml:"attempt_timeout" env:"ATTEMPT_TIMEOUT"`
	// Jitter randomizes each delay by up to 25 percent either way.
	Jitter bool `yaml:"jitter" env:"JITTER"`
}

// LogConfig is the logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths are zap output sinks.
	OutputPaths []string `yaml:"output_paths" env:"-"`
}

// MetricsConfig is the Prometheus exposition configuration.
type MetricsConfig struct {
	// Enabled turns the /metrics listener on.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Addr is the listen address for the metrics endpoint.
	Addr string `yaml:"addr" env:"ADDR"`
	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// DefaultConfig returns the configuration used when no file or environment
// override is present.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			MaxRetries:         3,
			MaxConcurrentTasks: 8,
			EventQueueSize:     1024,
		},
		Breaker: BreakerConfig{
			FailureThreshold:  5,
			RecoveryTimeout:   Duration(30 * time.Second),
			HalfOpenMaxProbes: 3,
		},
		Retry: RetryConfig{
			AttemptTimeout: 0,
			Jitter:         false,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Addr:      ":9090",
			Namespace: "syncforge",
		},
	}
}

// Validate rejects configurations the coordinator cannot run with.
func (c *Config) Validate() error {
	if c.Scheduler.MaxRetries < 0 {
		return fmt.Errorf("scheduler.max_retries must be >= 0, got %d", c.Scheduler.MaxRetries)
	}
	if c.Scheduler.MaxConcurrentTasks < 0 {
		return fmt.Errorf("scheduler.max_concurrent_tasks must be >= 0, got %d", c.Scheduler.MaxConcurrentTasks)
	}
	if c.Scheduler.EventQueueSize <= 0 {
		return fmt.Errorf("scheduler.event_queue_size must be > 0, got %d", c.Scheduler.EventQueueSize)
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be > 0, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.RecoveryTimeout <= 0 {
		return fmt.Errorf("breaker.recovery_timeout must be > 0, got %s", c.Breaker.RecoveryTimeout)
	}
	if c.Breaker.HalfOpenMaxProbes <= 0 {
		return fmt.Errorf("breaker.half_open_max_probes must be > 0, got %d", c.Breaker.HalfOpenMaxProbes)
	}
	for i, d := range c.Retry.Schedule {
		if d <= 0 {
			return fmt.Errorf("retry.schedule[%d] must be > 0, got %s", i, d)
		}
	}
	if c.Retry.AttemptTimeout < 0 {
		return fmt.Errorf("retry.attempt_timeout must be >= 0, got %s", c.Retry.AttemptTimeout)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}
	return nil
}
