package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "syncforge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 8, cfg.Scheduler.MaxConcurrentTasks)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.RecoveryTimeout.Std())
	assert.Equal(t, 3, cfg.Breaker.HalfOpenMaxProbes)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := NewLoader().WithConfigPath("/nonexistent/syncforge.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoader_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeFile(t, `
scheduler:
  max_retries: 5
  max_concurrent_tasks: 2
breaker:
  failure_threshold: 10
  recovery_timeout: 45s
retry:
  schedule: [100ms, 200ms]
  jitter: true
log:
  level: debug
  format: console
`)

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 2, cfg.Scheduler.MaxConcurrentTasks)
	assert.Equal(t, 10, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 45*time.Second, cfg.Breaker.RecoveryTimeout.Std())
	require.Len(t, cfg.Retry.Schedule, 2)
	assert.Equal(t, 100*time.Millisecond, cfg.Retry.Schedule[0].Std())
	assert.True(t, cfg.Retry.Jitter)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 1024, cfg.Scheduler.EventQueueSize)
	assert.Equal(t, 3, cfg.Breaker.HalfOpenMaxProbes)
}

func TestLoader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "scheduler:\n  max_workers: 4\n")
	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "scheduler:\n  max_retries: 5\n")
	t.Setenv("SYNCFORGE_SCHEDULER_MAX_RETRIES", "7")
	t.Setenv("SYNCFORGE_BREAKER_RECOVERY_TIMEOUT", "2m")
	t.Setenv("SYNCFORGE_LOG_LEVEL", "warn")
	t.Setenv("SYNCFORGE_METRICS_ENABLED", "true")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 2*time.Minute, cfg.Breaker.RecoveryTimeout.Std())
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoader_ValidationFailure(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "breaker:\n  failure_threshold: 0\n")
	_, err := NewLoader().WithConfigPath(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failure_threshold")
}

func TestLoader_CustomValidator(t *testing.T) {
	t.Parallel()

	_, err := NewLoader().WithValidator(func(cfg *Config) error {
		if cfg.Scheduler.MaxRetries < 10 {
			return assert.AnError
		}
		return nil
	}).Load()
	require.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative retries", func(c *Config) { c.Scheduler.MaxRetries = -1 }},
		{"zero queue", func(c *Config) { c.Scheduler.EventQueueSize = 0 }},
		{"zero recovery", func(c *Config) { c.Breaker.RecoveryTimeout = 0 }},
		{"zero probes", func(c *Config) { c.Breaker.HalfOpenMaxProbes = 0 }},
		{"bad schedule entry", func(c *Config) { c.Retry.Schedule = []Duration{0} }},
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"metrics without addr", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Addr = ""
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestBuildLogger(t *testing.T) {
	t.Parallel()

	logger := BuildLogger(LogConfig{Level: "debug", Format: "json"})
	require.NotNil(t, logger)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger = BuildLogger(LogConfig{Level: "nonsense", Format: "console"})
	require.NotNil(t, logger)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}
