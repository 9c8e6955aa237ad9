package orchestrator

import (
	"sort"
	"time"

	"github.com/ShayCichocki/conclave/internal/artifact"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// Snapshot is a read-only view of a running session.
type Snapshot struct {
	SessionID string                    `json:"session_id"`
	Workflow  string                    `json:"workflow"`
	Status    models.SessionStatus      `json:"status"`
	Paused    bool                      `json:"paused"`
	Records   []models.ExecutionRecord  `json:"records"`
	Artifacts map[string]artifact.Entry `json:"artifacts"`
	TakenAt   time.Time                 `json:"taken_at"`
}

// Counts tallies records by status.
func (s Snapshot) Counts() map[models.TaskStatus]int {
	counts := make(map[models.TaskStatus]int)
	for _, r := range s.Records {
		counts[r.Status]++
	}
	return counts
}

// TaskOutcome is the terminal state of one task.
type TaskOutcome struct {
	TaskID     string            `json:"task_id"`
	Status     models.TaskStatus `json:"status"`
	Attempts   int               `json:"attempts"`
	AgentID    string            `json:"agent_id,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	StartedAt  time.Time         `json:"started_at,omitempty"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	TokensUsed int64             `json:"tokens_used,omitempty"`
}

// Issue is a failed task worth surfacing to the operator.
type Issue struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

// Summary aggregates a finished session.
type Summary struct {
	Succeeded     int          `json:"succeeded"`
	Failed        int          `json:"failed"`
	Skipped       int          `json:"skipped"`
	TotalAttempts int          `json:"total_attempts"`
	TokensUsed    int64        `json:"tokens_used"`
	Issues        []Issue      `json:"issues,omitempty"`
	Agents        []AgentStats `json:"agents,omitempty"`
}

// FinalReport is produced once a session reaches a terminal status.
type FinalReport struct {
	SessionID  string                    `json:"session_id"`
	Workflow   string                    `json:"workflow"`
	Version    string                    `json:"version,omitempty"`
	Status     models.SessionStatus      `json:"status"`
	Priority   models.RunPriority        `json:"priority"`
	Reason     string                    `json:"reason,omitempty"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
	Tasks      []TaskOutcome             `json:"tasks"`
	Artifacts  map[string]artifact.Entry `json:"artifacts"`
	Superseded []artifact.Superseded     `json:"superseded,omitempty"`
	Summary    Summary                   `json:"summary"`
	// Plan is set for dry runs.
	Plan          *ExecutionPlan `json:"plan,omitempty"`
	DroppedEvents uint64         `json:"dropped_events,omitempty"`
}

// Duration is the wall time of the session.
func (r *FinalReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Task returns the outcome for id.
func (r *FinalReport) Task(id string) (TaskOutcome, bool) {
	for _, t := range r.Tasks {
		if t.TaskID == id {
			return t, true
		}
	}
	return TaskOutcome{}, false
}

// summarize computes the Summary of the given outcomes.
func summarize(tasks []TaskOutcome, agents []AgentStats) Summary {
	s := Summary{Agents: agents}
	for _, t := range tasks {
		s.TotalAttempts += t.Attempts
		s.TokensUsed += t.TokensUsed
		switch t.Status {
		case models.TaskStatusSucceeded:
			s.Succeeded++
		case models.TaskStatusFailed:
			s.Failed++
			msg := t.LastError
			if msg == "" {
				msg = t.Reason
			}
			s.Issues = append(s.Issues, Issue{TaskID: t.TaskID, Error: msg})
		case models.TaskStatusSkipped:
			s.Skipped++
		}
	}
	sort.Slice(s.Issues, func(i, j int) bool { return s.Issues[i].TaskID < s.Issues[j].TaskID })
	return s
}
