package agent

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when an agent call exceeds its deadline.
	ErrTimeout = errors.New("agent call timed out")
	// ErrCapabilityMismatch is returned when an agent cannot serve the requested capabilities.
	ErrCapabilityMismatch = errors.New("agent capability mismatch")
)

// AgentError wraps a failure reported by an agent implementation.
type AgentError struct {
	AgentID string
	TaskID  string
	Err     error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s failed task %s: %v", e.AgentID, e.TaskID, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

// FailureKind classifies an invocation error for reporting.
type FailureKind string

const (
	FailureTimeout            FailureKind = "timeout"
	FailureCapabilityMismatch FailureKind = "capability_mismatch"
	FailureAgentError         FailureKind = "agent_error"
)

// Classify maps err onto one of the three invocation failure kinds.
// Context deadline errors count as timeouts.
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	case errors.Is(err, ErrCapabilityMismatch):
		return FailureCapabilityMismatch
	default:
		return FailureAgentError
	}
}
