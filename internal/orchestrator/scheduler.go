package orchestrator

import (
	"errors"

	"github.com/ShayCichocki/conclave/internal/graph"
)

// Binding pairs a ready task with the agent reserved for it.
type Binding struct {
	TaskID  string
	AgentID string
}

// Scheduler converts ready tasks into (task, agent) bindings without exceeding
// the session-wide slot count or any agent's own limit.
type Scheduler struct {
	// graph is the workflow being scheduled.
	graph *graph.Workflow
	// registry owns agent capacity.
	registry *AgentRegistry
	// logger is the owning session's logger. Nil discards.
	logger *DebugLogger
}

// NewScheduler creates a scheduler for the workflow and registry that logs
// to logger.
func NewScheduler(wf *graph.Workflow, registry *AgentRegistry, logger *DebugLogger) *Scheduler {
	return &Scheduler{graph: wf, registry: registry, logger: logger}
}

// Schedule binds as many of the ready tasks as slots and agent capacity allow.
// Tasks are tried in priority order. A task whose candidates are all at
// capacity stays unbound and is tried again on the next tick. Every returned
// binding holds a reservation the caller must release.
func (s *Scheduler) Schedule(ready []string, slots int) []Binding {
	if slots <= 0 || len(ready) == 0 {
		if len(ready) > 0 {
			s.logger.Log("[scheduler] no free slots for %d ready tasks", len(ready))
		}
		return nil
	}

	ordered := append([]string(nil), ready...)
	s.graph.SortByPriority(ordered)

	var bindings []Binding
	for _, taskID := range ordered {
		if len(bindings) == slots {
			break
		}
		task := s.graph.Task(taskID)
		if task == nil {
			continue
		}

		for _, candidate := range s.registry.FindCandidates(task.Capabilities) {
			err := s.registry.Reserve(candidate.ID)
			if err == nil {
				s.logger.Log("[scheduler] reserved %s for %s (%d/%d)",
					candidate.ID, taskID, s.registry.Load(candidate.ID), candidate.MaxConcurrent)
				bindings = append(bindings, Binding{TaskID: taskID, AgentID: candidate.ID})
				break
			}
			if !errors.Is(err, ErrAgentAtCapacity) {
				s.logger.Log("[scheduler] reserve %s for %s: %v", candidate.ID, taskID, err)
			}
		}
	}
	s.logger.Log("[scheduler] bound %d of %d ready tasks (slots=%d)", len(bindings), len(ordered), slots)
	return bindings
}
