package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrAgentAtCapacity indicates an agent has no free concurrency slot.
	ErrAgentAtCapacity = errors.New("agent at capacity")
	// ErrUnknownAgent indicates an agent ID that was never registered.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrAborted indicates the session was cancelled or timed out.
	ErrAborted = errors.New("session aborted")
)

// AgentAtCapacityError reports which agent refused a reservation.
// The scheduler treats it as transient and tries the next candidate.
type AgentAtCapacityError struct {
	AgentID string
	Limit   int
}

func (e *AgentAtCapacityError) Error() string {
	return fmt.Sprintf("agent %s at capacity (limit %d)", e.AgentID, e.Limit)
}

// Is lets errors.Is match ErrAgentAtCapacity.
func (e *AgentAtCapacityError) Is(target error) bool {
	return target == ErrAgentAtCapacity
}

// AbortedError is returned by Await when the session ended early.
type AbortedError struct {
	SessionID string
	// Reason is "cancelled", "global timeout" or the context error.
	Reason string
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("session %s aborted: %s", e.SessionID, e.Reason)
}

// Is lets errors.Is match ErrAborted.
func (e *AbortedError) Is(target error) bool {
	return target == ErrAborted
}
