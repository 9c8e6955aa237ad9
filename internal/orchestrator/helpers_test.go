package orchestrator

import (
	"context"
	"time"

	"github.com/ShayCichocki/conclave/internal/agent"
	"github.com/ShayCichocki/conclave/internal/graph"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// fataler is the part of testing.TB that rapid.T also provides.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// testConfig returns a fast config: short poll interval, one attempt, tiny backoff.
func testConfig() RunConfig {
	cfg := DefaultRunConfig()
	cfg.Policy.Loop.PollInterval = 5 * time.Millisecond
	cfg.MaxParallelAgents = 4
	cfg.TaskTimeout = 5 * time.Second
	cfg.Retry = models.RetryPolicy{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
	return cfg
}

func mustWorkflow(t fataler, tasks ...*models.Task) *graph.Workflow {
	t.Helper()
	wf, err := graph.New("test", "1", tasks)
	if err != nil {
		t.Fatalf("graph.New() error = %v", err)
	}
	return wf
}

func newTask(id string, deps ...string) *models.Task {
	return &models.Task{ID: id, Title: id, Capabilities: models.NewCapabilitySet("work"), DependsOn: deps}
}

func mustRegistry(t fataler, agents ...*agent.Agent) *AgentRegistry {
	t.Helper()
	r := NewAgentRegistry()
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			t.Fatalf("Register(%s) error = %v", a.ID, err)
		}
	}
	return r
}

func worker(id string, limit int, fn agent.InvokerFunc) *agent.Agent {
	return agent.New(id, models.NewCapabilitySet("work"), limit, fn)
}

// succeed returns a result writing the task's declared keys.
func succeed(ctx context.Context, in agent.Input) (*models.Result, error) {
	payload := map[string]any{}
	for _, k := range in.Writes {
		payload[k] = in.TaskID
	}
	return &models.Result{Payload: payload, Confidence: models.Confidence(0.5)}, nil
}

func run(t fataler, wf *graph.Workflow, reg *AgentRegistry, cfg RunConfig, opts ...Option) (*FinalReport, error) {
	t.Helper()
	s, err := Start(context.Background(), wf, reg, cfg, opts...)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Await(ctx)
}

func mustTask(t fataler, r *FinalReport, id string) TaskOutcome {
	t.Helper()
	out, ok := r.Task(id)
	if !ok {
		t.Fatalf("task %s missing from report", id)
	}
	return out
}
