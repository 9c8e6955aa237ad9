package orchestrator

import (
	"errors"
	"testing"
	"time"

	"github.com/ShayCichocki/conclave/internal/graph"
	"github.com/ShayCichocki/conclave/pkg/models"
)

func TestPlanPhases(t *testing.T) {
	fetch := newTask("fetch")
	fetch.Estimate = 2 * time.Minute
	fetch.EstimatedTokens = 500
	lint := newTask("lint")
	lint.Priority = 3
	report := newTask("report", "fetch", "lint")

	wf := mustWorkflow(t, fetch, lint, report)
	reg := mustRegistry(t, worker("w2", 1, succeed), worker("w1", 1, succeed))

	cfg := testConfig()
	cfg.MaxParallelAgents = 8
	plan, err := Plan(wf, reg, cfg)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}

	if len(plan.Phases) != 2 {
		t.Fatalf("got %d phases, want 2", len(plan.Phases))
	}
	first := plan.Phases[0]
	if first.Tasks[0].TaskID != "lint" || first.Tasks[1].TaskID != "fetch" {
		t.Errorf("phase 0 order = %s,%s, want lint,fetch", first.Tasks[0].TaskID, first.Tasks[1].TaskID)
	}
	if first.Duration != 5*time.Minute {
		t.Errorf("phase 0 duration = %v, want 5m (default estimate)", first.Duration)
	}
	if got := first.Tasks[1].Candidates; len(got) != 2 || got[0] != "w1" {
		t.Errorf("candidates = %v, want [w1 w2]", got)
	}
	if plan.EstimatedDuration != 10*time.Minute {
		t.Errorf("EstimatedDuration = %v, want 10m", plan.EstimatedDuration)
	}
	if plan.EstimatedTokens != 700 {
		t.Errorf("EstimatedTokens = %d, want 700", plan.EstimatedTokens)
	}
	if plan.MaxParallelism != 2 {
		t.Errorf("MaxParallelism = %d, want 2", plan.MaxParallelism)
	}
	if plan.TotalTasks != 3 {
		t.Errorf("TotalTasks = %d, want 3", plan.TotalTasks)
	}
}

func TestPlanCapsParallelism(t *testing.T) {
	wf := mustWorkflow(t, newTask("a"), newTask("b"), newTask("c"))
	reg := mustRegistry(t, worker("w", 1, succeed))
	cfg := testConfig()
	cfg.MaxParallelAgents = 2

	plan, err := Plan(wf, reg, cfg)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if plan.MaxParallelism != 2 {
		t.Errorf("MaxParallelism = %d, want 2", plan.MaxParallelism)
	}
}

func TestPlanRejectsUnsatisfiable(t *testing.T) {
	wf := mustWorkflow(t, &models.Task{ID: "x", Capabilities: models.NewCapabilitySet("quantum")})
	reg := mustRegistry(t, worker("w", 1, succeed))

	_, err := Plan(wf, reg, testConfig())
	var unsat *graph.UnsatisfiableCapabilityError
	if !errors.As(err, &unsat) {
		t.Errorf("expected UnsatisfiableCapabilityError, got %v", err)
	}
}
