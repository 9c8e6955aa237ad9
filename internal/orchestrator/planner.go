package orchestrator

import (
	"time"

	"github.com/ShayCichocki/conclave/internal/graph"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// PlannedTask is one task of a dry-run plan.
type PlannedTask struct {
	TaskID          string               `json:"task_id"`
	Title           string               `json:"title,omitempty"`
	Priority        int                  `json:"priority"`
	Capabilities    models.CapabilitySet `json:"capabilities"`
	DependsOn       []string             `json:"depends_on,omitempty"`
	Candidates      []string             `json:"candidates"`
	Estimate        time.Duration        `json:"estimate"`
	EstimatedTokens int                  `json:"estimated_tokens"`
}

// PlanPhase groups tasks that can run in parallel once earlier phases finish.
type PlanPhase struct {
	Index    int           `json:"index"`
	Tasks    []PlannedTask `json:"tasks"`
	Duration time.Duration `json:"duration"`
}

// ExecutionPlan is the outcome of a dry run.
type ExecutionPlan struct {
	Workflow          string        `json:"workflow"`
	Version           string        `json:"version,omitempty"`
	Phases            []PlanPhase   `json:"phases"`
	TotalTasks        int           `json:"total_tasks"`
	MaxParallelism    int           `json:"max_parallelism"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	EstimatedTokens   int           `json:"estimated_tokens"`
}

// Plan validates wf against the registry and lays it out in phases without
// dispatching anything. Each phase lasts as long as its longest task;
// MaxParallelism is the widest phase capped by the run's parallel bound.
func Plan(wf *graph.Workflow, registry *AgentRegistry, cfg RunConfig) (*ExecutionPlan, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if err := wf.ValidateCapabilities(registry); err != nil {
		return nil, err
	}

	defEstimate := cfg.Policy.Planning.DefaultTaskEstimate
	defTokens := cfg.Policy.Planning.DefaultTaskTokens

	plan := &ExecutionPlan{
		Workflow:   wf.Name(),
		Version:    wf.Version(),
		TotalTasks: wf.Size(),
	}
	for i, level := range wf.Levels() {
		phase := PlanPhase{Index: i}
		for _, id := range level {
			task := wf.Task(id)

			var candidates []string
			for _, a := range registry.FindCandidates(task.Capabilities) {
				candidates = append(candidates, a.ID)
			}

			estimate := task.Estimate
			if estimate <= 0 {
				estimate = defEstimate
			}
			tokens := task.EstimatedTokens
			if tokens <= 0 {
				tokens = defTokens
			}

			phase.Tasks = append(phase.Tasks, PlannedTask{
				TaskID:          id,
				Title:           task.Title,
				Priority:        task.Priority,
				Capabilities:    task.Capabilities,
				DependsOn:       task.DependsOn,
				Candidates:      candidates,
				Estimate:        estimate,
				EstimatedTokens: tokens,
			})
			if estimate > phase.Duration {
				phase.Duration = estimate
			}
			plan.EstimatedTokens += tokens
		}

		plan.EstimatedDuration += phase.Duration
		if w := len(phase.Tasks); w > plan.MaxParallelism {
			plan.MaxParallelism = w
		}
		plan.Phases = append(plan.Phases, phase)
	}
	if plan.MaxParallelism > cfg.MaxParallelAgents {
		plan.MaxParallelism = cfg.MaxParallelAgents
	}
	return plan, nil
}
