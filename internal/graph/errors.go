package graph

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCycleDetected indicates a circular dependency was found in the task graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// CycleDetectedError reports the exact cycle found during validation.
// Cycle starts and ends with the same task ID.
type CycleDetectedError struct {
	Cycle []string
}

func (e *CycleDetectedError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycleDetected, strings.Join(e.Cycle, " -> "))
}

// Is lets errors.Is match ErrCycleDetected.
func (e *CycleDetectedError) Is(target error) bool {
	return target == ErrCycleDetected
}

// UnknownDependencyError indicates an edge to a task missing from the graph.
type UnknownDependencyError struct {
	TaskID     string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %s depends on unknown task %s", e.TaskID, e.Dependency)
}

// UnsatisfiableCapabilityError indicates no registered agent can run a task.
type UnsatisfiableCapabilityError struct {
	TaskID   string
	Required []string
}

func (e *UnsatisfiableCapabilityError) Error() string {
	return fmt.Sprintf("task %s requires capabilities {%s} that no registered agent provides",
		e.TaskID, strings.Join(e.Required, ","))
}

// DuplicateTaskError indicates two tasks share an ID.
type DuplicateTaskError struct {
	TaskID string
}

func (e *DuplicateTaskError) Error() string {
	return fmt.Sprintf("duplicate task id %s", e.TaskID)
}

// ErrEmptyTaskID is returned when a task has no identifier.
var ErrEmptyTaskID = errors.New("task id is required")
