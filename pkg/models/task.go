package models

import (
	"math"
	"time"
)

// Task is one schedulable unit of work in a workflow graph.
type Task struct {
	// ID is the unique identifier for this task within its workflow.
	ID string `json:"id" yaml:"id"`
	// Title is a short human-readable description.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	// Capabilities is the set of agent capabilities required to run the task.
	Capabilities CapabilitySet `json:"capabilities" yaml:"capabilities"`
	// DependsOn lists task IDs that must succeed before this task.
	DependsOn []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	// Priority is the scheduling weight. Higher runs first.
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`
	// Retry controls attempt limits and backoff.
	Retry RetryPolicy `json:"retry,omitempty" yaml:"retry,omitempty"`
	// Timeout bounds a single agent call. Zero uses the run default.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Inputs lists artifact keys assembled into the task input.
	// Empty means every artifact written by the direct dependencies.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	// Writes lists the artifact keys the task is expected to produce.
	Writes []string `json:"writes,omitempty" yaml:"writes,omitempty"`
	// Params is static task configuration passed through to the agent.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
	// Estimate is the expected duration used by dry-run planning.
	Estimate time.Duration `json:"estimate,omitempty" yaml:"estimate,omitempty"`
	// EstimatedTokens is the expected token spend used by dry-run planning.
	EstimatedTokens int `json:"estimated_tokens,omitempty" yaml:"estimated_tokens,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Capabilities = t.Capabilities.Clone()
	c.DependsOn = cloneStrings(t.DependsOn)
	c.Inputs = cloneStrings(t.Inputs)
	c.Writes = cloneStrings(t.Writes)
	if t.Params != nil {
		c.Params = make(map[string]any, len(t.Params))
		for k, v := range t.Params {
			c.Params[k] = v
		}
	}
	return &c
}

// RetryPolicy controls how many times a task is attempted and how long
// to wait between attempts.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	// InitialBackoff is the delay after the first failed attempt.
	InitialBackoff time.Duration `json:"initial_backoff,omitempty" yaml:"initial_backoff,omitempty"`
	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration `json:"max_backoff,omitempty" yaml:"max_backoff,omitempty"`
	// Multiplier grows the delay after each failure.
	Multiplier float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`
}

// IsZero reports whether no field of the policy was set.
func (p RetryPolicy) IsZero() bool {
	return p.MaxAttempts == 0 && p.InitialBackoff == 0 && p.MaxBackoff == 0 && p.Multiplier == 0
}

// WithDefaults fills unset fields from def.
func (p RetryPolicy) WithDefaults(def RetryPolicy) RetryPolicy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialBackoff == 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.MaxBackoff == 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.Multiplier == 0 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
// The delay grows exponentially and is bounded by MaxBackoff.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.InitialBackoff) * math.Pow(mult, float64(attempt-1))
	if p.MaxBackoff > 0 && d > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
