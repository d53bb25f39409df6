package models

import "time"

const (
	DefaultMaxParallelism = 4
	DefaultPerTaskTimeout = 60 * time.Second
	DefaultShutdownGrace  = 5 * time.Second
	DefaultBackoffBase    = 1 * time.Second
	DefaultBackoffCap     = 10 * time.Second
	DefaultMaxRetries     = 3
)

// HealthCheckConfig controls the readiness probe issued before dispatch.
type HealthCheckConfig struct {
	TargetURL   string        `json:"target_url"`
	MaxRetries  int           `json:"max_retries"`
	BackoffBase time.Duration `json:"backoff_base"`
	BackoffCap  time.Duration `json:"backoff_cap"`
}

// RunConfig is the caller-supplied configuration for one run. It is read-only
// during execution.
type RunConfig struct {
	PlanName       string        `json:"plan_name"`
	MaxParallelism int           `json:"max_parallelism"`
	StopOnError    bool          `json:"stop_on_error"`
	IterationCount int           `json:"iteration_count"`
	PerTaskTimeout time.Duration `json:"per_task_timeout"`
	// StaggerDelay smooths dispatch within a level so a full level does not
	// hit the target in a single burst.
	StaggerDelay  time.Duration     `json:"stagger_delay"`
	ShutdownGrace time.Duration     `json:"shutdown_grace"`
	HealthCheck   HealthCheckConfig `json:"health_check"`
	// HealthCheckEveryCheckpoint re-runs the readiness probe before
	// dispatching the level that follows a checkpoint.
	HealthCheckEveryCheckpoint bool `json:"health_check_every_checkpoint"`
}

// DefaultRunConfig returns a RunConfig with sane defaults for every field the
// caller leaves unset.
func DefaultRunConfig(planName string) RunConfig {
	return RunConfig{
		PlanName:       planName,
		MaxParallelism: DefaultMaxParallelism,
		IterationCount: 1,
		PerTaskTimeout: DefaultPerTaskTimeout,
		ShutdownGrace:  DefaultShutdownGrace,
		HealthCheck: HealthCheckConfig{
			MaxRetries:  DefaultMaxRetries,
			BackoffBase: DefaultBackoffBase,
			BackoffCap:  DefaultBackoffCap,
		},
	}
}

// Normalize fills zero values with defaults so a partially populated config
// loaded from the store is still runnable.
func (c *RunConfig) Normalize() {
	if c.MaxParallelism <= 0 {
		c.MaxParallelism = DefaultMaxParallelism
	}
	if c.IterationCount <= 0 {
		c.IterationCount = 1
	}
	if c.PerTaskTimeout <= 0 {
		c.PerTaskTimeout = DefaultPerTaskTimeout
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	if c.HealthCheck.MaxRetries <= 0 {
		c.HealthCheck.MaxRetries = DefaultMaxRetries
	}
	if c.HealthCheck.BackoffBase <= 0 {
		c.HealthCheck.BackoffBase = DefaultBackoffBase
	}
	if c.HealthCheck.BackoffCap <= 0 {
		c.HealthCheck.BackoffCap = DefaultBackoffCap
	}
}
