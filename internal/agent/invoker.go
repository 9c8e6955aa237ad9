// Package agent defines the invocation contract every agent implements.
package agent

import (
	"context"

	"github.com/ShayCichocki/conclave/pkg/models"
)

// Input is the resolved payload handed to an agent for one attempt.
type Input struct {
	// TaskID identifies the task being executed.
	TaskID string
	// Title is the task title, useful for prompt construction.
	Title string
	// Capabilities is the task's required capability set.
	Capabilities models.CapabilitySet
	// Attempt is the 1-based attempt number.
	Attempt int
	// Artifacts holds the assembled shared artifact values by key.
	Artifacts map[string]any
	// Params is the task's static configuration.
	Params map[string]any
	// Writes lists the artifact keys the task is expected to produce.
	Writes []string
}

// Invoker executes a task input and produces a Result.
// Implementations must honor ctx cancellation where they can, and return
// ErrTimeout, ErrCapabilityMismatch or an *AgentError on failure.
type Invoker interface {
	Invoke(ctx context.Context, in Input) (*models.Result, error)
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, in Input) (*models.Result, error)

// Invoke calls f(ctx, in).
func (f InvokerFunc) Invoke(ctx context.Context, in Input) (*models.Result, error) {
	return f(ctx, in)
}

// Agent binds an identity, capability set and concurrency limit to an Invoker.
type Agent struct {
	ID            string
	Capabilities  models.CapabilitySet
	MaxConcurrent int
	Invoker       Invoker
}

// New creates an Agent. A limit below 1 is treated as 1.
func New(id string, caps models.CapabilitySet, maxConcurrent int, inv Invoker) *Agent {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Agent{
		ID:            id,
		Capabilities:  caps.Normalize(),
		MaxConcurrent: maxConcurrent,
		Invoker:       inv,
	}
}
