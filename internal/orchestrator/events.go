package orchestrator

import (
	"time"
)

// EventType represents the type of session event.
type EventType string

const (
	// EventTaskReady indicates a task's dependencies all succeeded.
	EventTaskReady EventType = "task_ready"
	// EventTaskDispatched indicates an agent call started.
	EventTaskDispatched EventType = "task_dispatched"
	// EventTaskRetrying indicates an attempt failed and a retry is scheduled.
	EventTaskRetrying EventType = "task_retrying"
	// EventTaskSucceeded indicates a task completed successfully.
	EventTaskSucceeded EventType = "task_succeeded"
	// EventTaskFailed indicates a task failed terminally.
	EventTaskFailed EventType = "task_failed"
	// EventTaskSkipped indicates a task will not run.
	EventTaskSkipped EventType = "task_skipped"
	// EventArtifactWritten indicates an artifact value was replaced.
	EventArtifactWritten EventType = "artifact_written"
	// EventArtifactSuperseded indicates a write lost conflict resolution.
	EventArtifactSuperseded EventType = "artifact_superseded"
	// EventLateResult indicates a result arrived after its attempt timed out.
	EventLateResult EventType = "late_result"
	// EventSessionPaused indicates dispatching was paused.
	EventSessionPaused EventType = "session_paused"
	// EventSessionResumed indicates dispatching resumed.
	EventSessionResumed EventType = "session_resumed"
	// EventSessionDone indicates the session reached a terminal status.
	EventSessionDone EventType = "session_done"
)

// Event represents a change emitted by a session.
// Events drive the monitor and the CLI progress output.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// SessionID identifies the emitting session.
	SessionID string
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// AgentID is the ID of the related agent, if applicable.
	AgentID string
	// Attempt is the attempt number for dispatch and retry events.
	Attempt int
	// Key is the artifact key for artifact events.
	Key string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
