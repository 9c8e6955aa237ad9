package models

// TaskStatus is the lifecycle state of a task within one session.
type TaskStatus string

const (
	// TaskStatusPending means dependencies are not yet satisfied.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusReady means the task may be bound to an agent.
	TaskStatusReady TaskStatus = "ready"
	// TaskStatusDispatched means an agent call is in flight.
	TaskStatusDispatched TaskStatus = "dispatched"
	// TaskStatusRetrying means the last attempt failed and a backoff is pending.
	TaskStatusRetrying TaskStatus = "retrying"
	// TaskStatusSucceeded is terminal.
	TaskStatusSucceeded TaskStatus = "succeeded"
	// TaskStatusFailed is terminal.
	TaskStatusFailed TaskStatus = "failed"
	// TaskStatusSkipped is terminal.
	TaskStatusSkipped TaskStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusReady, TaskStatusDispatched, TaskStatusRetrying,
		TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed || s == TaskStatusSkipped
}

// transitions lists the allowed non-skip moves of the task state machine.
var transitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusReady, TaskStatusFailed},
	TaskStatusReady:      {TaskStatusDispatched},
	TaskStatusDispatched: {TaskStatusSucceeded, TaskStatusRetrying, TaskStatusFailed},
	TaskStatusRetrying:   {TaskStatusReady},
}

// CanTransition reports whether moving from s to next is allowed.
// Any non-terminal state may move to Skipped. Pending may move to Failed when
// an ancestor failed under continue-on-error.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == TaskStatusSkipped {
		return true
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SessionStatus is the lifecycle state of an orchestration session.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionAborted   SessionStatus = "aborted"
)

// IsTerminal reports whether the session has finished.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionAborted
}

// RunPriority labels how urgent a run is. It is carried into reports.
type RunPriority string

const (
	PriorityLow      RunPriority = "low"
	PriorityNormal   RunPriority = "normal"
	PriorityHigh     RunPriority = "high"
	PriorityCritical RunPriority = "critical"
)

// Valid returns true if the priority is a known value.
func (p RunPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	default:
		return false
	}
}
