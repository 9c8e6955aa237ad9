package orchestrator

import (
	"fmt"
	"time"

	"github.com/ShayCichocki/conclave/internal/orchestrator/policy"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// RunConfig contains the settings of one orchestration session.
// It is immutable once the session starts.
type RunConfig struct {
	// MaxParallelAgents bounds the number of in-flight agent calls.
	MaxParallelAgents int

	// FailFast skips descendants of a failed task. When false, descendants
	// are failed with reason "dependency failed" instead.
	FailFast bool

	// GlobalTimeout aborts the session when exceeded. Zero disables it.
	GlobalTimeout time.Duration

	// TaskTimeout bounds one agent call for tasks without their own timeout.
	TaskTimeout time.Duration

	// DryRun validates and plans without dispatching anything.
	DryRun bool

	// Priority labels the run in reports and the archive.
	Priority models.RunPriority

	// Retry is the default retry policy for tasks that declare none.
	Retry models.RetryPolicy

	// Policy contains loop and planning parameters.
	Policy *policy.Config
}

// DefaultRunConfig returns a RunConfig built from the default policy.
func DefaultRunConfig() RunConfig {
	p := policy.Default()
	return RunConfig{
		MaxParallelAgents: p.Limits.MaxParallelAgents,
		FailFast:          true,
		TaskTimeout:       p.Limits.TaskTimeout,
		Priority:          models.PriorityNormal,
		Retry:             retryFromPolicy(p.Retry),
		Policy:            p,
	}
}

// normalize fills unset fields from the policy and rejects invalid values.
func (c RunConfig) normalize() (RunConfig, error) {
	if c.Policy == nil {
		c.Policy = policy.Default()
	}
	if err := c.Policy.Validate(); err != nil {
		return c, fmt.Errorf("invalid policy: %w", err)
	}
	if c.MaxParallelAgents < 0 {
		return c, fmt.Errorf("max parallel agents must not be negative: %d", c.MaxParallelAgents)
	}
	if c.MaxParallelAgents == 0 {
		c.MaxParallelAgents = c.Policy.Limits.MaxParallelAgents
	}
	if c.GlobalTimeout < 0 {
		return c, fmt.Errorf("global timeout must not be negative: %v", c.GlobalTimeout)
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = c.Policy.Limits.TaskTimeout
	}
	if c.Priority == "" {
		c.Priority = models.PriorityNormal
	}
	if !c.Priority.Valid() {
		return c, fmt.Errorf("unknown run priority %q", c.Priority)
	}
	c.Retry = c.Retry.WithDefaults(retryFromPolicy(c.Policy.Retry))
	return c, nil
}

func retryFromPolicy(p policy.RetryPolicy) models.RetryPolicy {
	return models.RetryPolicy{
		MaxAttempts:    p.MaxAttempts,
		InitialBackoff: p.InitialBackoff,
		MaxBackoff:     p.MaxBackoff,
		Multiplier:     p.Multiplier,
	}
}
