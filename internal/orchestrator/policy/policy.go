// Package policy defines the tunable parameters of the orchestration engine.
// Magic numbers for loop timing, retries, limits and planning estimates live
// here so they can be configured and overridden in tests.
package policy

import "time"

// Config contains all configurable policy parameters for the orchestrator.
type Config struct {
	// Loop policies
	Loop LoopPolicy

	// Retry defaults applied to tasks without their own policy
	Retry RetryPolicy

	// Concurrency and timeout limits
	Limits LimitPolicy

	// Dry-run estimate defaults
	Planning PlanningPolicy
}

// LoopPolicy controls run loop behavior.
type LoopPolicy struct {
	// PollInterval is the delay between scheduling ticks when nothing happens.
	PollInterval time.Duration

	// EventBufferSize is the capacity of the session event channel.
	EventBufferSize int
}

// RetryPolicy holds the default retry schedule.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// LimitPolicy bounds concurrency and call duration.
type LimitPolicy struct {
	// MaxParallelAgents is the default session-wide bound on in-flight agent calls.
	MaxParallelAgents int

	// MaxConcurrentSessions bounds the sessions a SessionPool runs at once.
	MaxConcurrentSessions int

	// TaskTimeout is the default bound on one agent call.
	TaskTimeout time.Duration
}

// PlanningPolicy supplies estimates for tasks that declare none.
type PlanningPolicy struct {
	DefaultTaskEstimate time.Duration
	DefaultTaskTokens   int
}

// Default returns the default policy configuration.
func Default() *Config {
	return &Config{
		Loop: LoopPolicy{
			PollInterval:    100 * time.Millisecond,
			EventBufferSize: 256,
		},
		Retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Multiplier:     2,
		},
		Limits: LimitPolicy{
			MaxParallelAgents:     4,
			MaxConcurrentSessions: 5,
			TaskTimeout:           5 * time.Minute,
		},
		Planning: PlanningPolicy{
			DefaultTaskEstimate: 5 * time.Minute,
			DefaultTaskTokens:   100,
		},
	}
}

// Validate clamps out-of-range values back to their defaults.
func (c *Config) Validate() error {
	if c.Loop.PollInterval < time.Millisecond {
		c.Loop.PollInterval = 100 * time.Millisecond
	}
	if c.Loop.EventBufferSize < 1 {
		c.Loop.EventBufferSize = 256
	}
	if c.Retry.MaxAttempts < 1 {
		c.Retry.MaxAttempts = 1
	}
	if c.Retry.InitialBackoff < 0 {
		c.Retry.InitialBackoff = 0
	}
	if c.Retry.MaxBackoff < c.Retry.InitialBackoff {
		c.Retry.MaxBackoff = c.Retry.InitialBackoff
	}
	if c.Retry.Multiplier < 1 {
		c.Retry.Multiplier = 1
	}
	if c.Limits.MaxParallelAgents < 1 {
		c.Limits.MaxParallelAgents = 4
	}
	if c.Limits.MaxConcurrentSessions < 1 {
		c.Limits.MaxConcurrentSessions = 5
	}
	if c.Limits.TaskTimeout <= 0 {
		c.Limits.TaskTimeout = 5 * time.Minute
	}
	if c.Planning.DefaultTaskEstimate <= 0 {
		c.Planning.DefaultTaskEstimate = 5 * time.Minute
	}
	if c.Planning.DefaultTaskTokens < 0 {
		c.Planning.DefaultTaskTokens = 100
	}
	return nil
}
