package workflow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/conclave/internal/graph"
	"github.com/ShayCichocki/conclave/pkg/models"
)

const listWorkflow = `
name: feature-development
version: "1.2"
context:
  repo: my-project
  language: go
defaults:
  timeout: 2m
  retry:
    max_attempts: 2
    initial_backoff: 500ms
tasks:
  - id: design
    capabilities: [system-architect]
    writes: [design_doc]
  - id: backend
    capabilities: [backend-developer]
    depends_on: [design]
    priority: 5
    timeout: 10m
  - id: review
    capabilities: [code-quality-analyzer, security-auditor]
    depends_on: [backend, design]
    retry:
      max_attempts: 4
`

func TestParse_ListForm(t *testing.T) {
	def, err := Parse([]byte(listWorkflow))
	require.NoError(t, err)

	wf := def.Workflow
	assert.Equal(t, "feature-development", wf.Name())
	assert.Equal(t, "1.2", wf.Version())
	assert.Equal(t, 3, wf.Size())
	assert.Equal(t, []string{"language", "repo"}, def.ContextKeys())
	assert.Equal(t, "my-project", def.Context["repo"])

	design := wf.Task("design")
	require.NotNil(t, design)
	assert.Equal(t, 2*time.Minute, design.Timeout)
	assert.Equal(t, 2, design.Retry.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, design.Retry.InitialBackoff)
	assert.Equal(t, []string{"design_doc"}, design.Writes)

	backend := wf.Task("backend")
	assert.Equal(t, 10*time.Minute, backend.Timeout)
	assert.Equal(t, 5, backend.Priority)

	review := wf.Task("review")
	assert.Equal(t, 4, review.Retry.MaxAttempts)
	assert.Equal(t, time.Duration(0), review.Retry.InitialBackoff, "explicit retry block replaces defaults")
	assert.Equal(t, models.NewCapabilitySet("security-auditor", "code-quality-analyzer"), review.Capabilities)
	assert.Equal(t, []string{"backend", "design"}, wf.Dependencies("review"))
}

func TestParse_MappingForm(t *testing.T) {
	data := `
name: mapped
tasks:
  fetch:
    capabilities: [general-purpose]
  summarize:
    capabilities: [work-completion-summary]
    depends_on: [fetch]
`
	def, err := Parse([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch", "summarize"}, def.Workflow.IDs())
	assert.Equal(t, []string{"fetch"}, def.Workflow.Dependencies("summarize"))
}

func TestParse_MappingIDMismatch(t *testing.T) {
	data := `
name: mapped
tasks:
  fetch:
    id: other
    capabilities: [general-purpose]
`
	_, err := Parse([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"missing name", "tasks:\n  - id: a\n", "name is required"},
		{"no tasks", "name: empty\n", "has no tasks"},
		{"scalar tasks", "name: bad\ntasks: nope\n", "list or a mapping"},
		{"invalid yaml", "name: [unterminated\n", "parse workflow"},
		{"bad duration", "name: d\ntasks:\n  - id: a\n    timeout: soon\n", "parse workflow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParse_GraphErrorsSurface(t *testing.T) {
	cyclic := `
name: loop
tasks:
  - id: a
    depends_on: [b]
  - id: b
    depends_on: [a]
`
	_, err := Parse([]byte(cyclic))
	var cycleErr *graph.CycleDetectedError
	require.True(t, errors.As(err, &cycleErr), "got %v", err)
	assert.Equal(t, []string{"a", "b", "a"}, cycleErr.Cycle)

	unknown := `
name: dangling
tasks:
  - id: a
    depends_on: [ghost]
`
	_, err = Parse([]byte(unknown))
	var depErr *graph.UnknownDependencyError
	require.True(t, errors.As(err, &depErr), "got %v", err)
	assert.Equal(t, "ghost", depErr.Dependency)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(listWorkflow), 0o644))

	def, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, def.Workflow.Size())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
