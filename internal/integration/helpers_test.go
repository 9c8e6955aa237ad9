//go:build integration

package integration

import (
	"testing"
	"time"

	"github.com/ShayCichocki/conclave/internal/agent"
	"github.com/ShayCichocki/conclave/internal/orchestrator"
	"github.com/ShayCichocki/conclave/internal/workflow"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// echoRegistry registers one static agent per spec.
func echoRegistry(t *testing.T, specs ...models.AgentSpec) *orchestrator.AgentRegistry {
	t.Helper()
	registry := orchestrator.NewAgentRegistry()
	for _, spec := range specs {
		a := agent.New(spec.ID, spec.Capabilities, spec.MaxConcurrent, agent.NewStaticInvoker(spec))
		if err := registry.Register(a); err != nil {
			t.Fatalf("Register(%s) error = %v", spec.ID, err)
		}
	}
	return registry
}

func parseWorkflow(t *testing.T, src string) *workflow.Definition {
	t.Helper()
	def, err := workflow.Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return def
}

// fastConfig keeps retries and polling short.
func fastConfig() orchestrator.RunConfig {
	rc := orchestrator.DefaultRunConfig()
	rc.Policy.Loop.PollInterval = 5 * time.Millisecond
	rc.Retry = models.RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, Multiplier: 2}
	rc.TaskTimeout = 5 * time.Second
	return rc
}
