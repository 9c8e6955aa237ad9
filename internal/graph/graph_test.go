package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ShayCichocki/conclave/pkg/models"
)

func task(id string, deps ...string) *models.Task {
	return &models.Task{ID: id, Title: id, DependsOn: deps}
}

type capIndex map[string]bool

func (c capIndex) CanSatisfy(required models.CapabilitySet) bool {
	for _, r := range required {
		if !c[r] {
			return false
		}
	}
	return true
}

func TestNewSimple(t *testing.T) {
	g, err := New("wf", "1", []*models.Task{task("a"), task("b", "a"), task("c", "a", "b")})
	require.NoError(t, err)

	assert.Equal(t, 3, g.Size())
	assert.Equal(t, "wf", g.Name())
	assert.Equal(t, "1", g.Version())
	assert.Equal(t, []string{"a", "b"}, g.Dependencies("c"))
	assert.Equal(t, []string{"b", "c"}, g.Dependents("a"))
}

func TestNewEmptyGraph(t *testing.T) {
	g, err := New("empty", "", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Size())
	assert.Empty(t, g.ReadyTasks(nil, nil))
}

func TestNewUnknownDependency(t *testing.T) {
	_, err := New("wf", "", []*models.Task{task("a", "ghost")})

	var unknown *UnknownDependencyError
	require.True(t, errors.As(err, &unknown), "got %v", err)
	assert.Equal(t, "a", unknown.TaskID)
	assert.Equal(t, "ghost", unknown.Dependency)
}

func TestNewDuplicateTask(t *testing.T) {
	_, err := New("wf", "", []*models.Task{task("a"), task("a")})

	var dup *DuplicateTaskError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "a", dup.TaskID)
}

func TestNewEmptyID(t *testing.T) {
	_, err := New("wf", "", []*models.Task{task("")})
	assert.ErrorIs(t, err, ErrEmptyTaskID)
}

func TestCycleDetectionReportsPath(t *testing.T) {
	tests := []struct {
		name  string
		tasks []*models.Task
		want  []string
	}{
		{
			name:  "self loop",
			tasks: []*models.Task{task("a", "a")},
			want:  []string{"a", "a"},
		},
		{
			name:  "two node",
			tasks: []*models.Task{task("a", "b"), task("b", "a")},
			want:  []string{"a", "b", "a"},
		},
		{
			name:  "three node",
			tasks: []*models.Task{task("a", "c"), task("b", "a"), task("c", "b")},
			want:  []string{"a", "c", "b", "a"},
		},
		{
			name: "cycle behind a valid root",
			tasks: []*models.Task{
				task("root"),
				task("x", "root", "z"),
				task("y", "x"),
				task("z", "y"),
			},
			want: []string{"x", "z", "y", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New("wf", "", tt.tasks)
			require.ErrorIs(t, err, ErrCycleDetected)

			var cycle *CycleDetectedError
			require.True(t, errors.As(err, &cycle))
			assert.Equal(t, tt.want, cycle.Cycle)
		})
	}
}

func TestValidateCapabilities(t *testing.T) {
	g, err := New("wf", "", []*models.Task{
		{ID: "a", Capabilities: models.NewCapabilitySet("code")},
		{ID: "b", Capabilities: models.NewCapabilitySet("code", "gpu")},
	})
	require.NoError(t, err)

	assert.NoError(t, g.ValidateCapabilities(capIndex{"code": true, "gpu": true}))

	err = g.ValidateCapabilities(capIndex{"code": true})
	var unsat *UnsatisfiableCapabilityError
	require.True(t, errors.As(err, &unsat), "got %v", err)
	assert.Equal(t, "b", unsat.TaskID)
	assert.Equal(t, []string{"code", "gpu"}, unsat.Required)

	assert.Error(t, g.ValidateCapabilities(nil))
}

func TestReadyTasksOrdering(t *testing.T) {
	g, err := New("wf", "", []*models.Task{
		{ID: "low", Priority: 1},
		{ID: "high", Priority: 9},
		{ID: "mid-b", Priority: 5},
		{ID: "mid-a", Priority: 5},
		{ID: "blocked", Priority: 100, DependsOn: []string{"low"}},
	})
	require.NoError(t, err)

	ready := g.ReadyTasks(map[string]bool{}, func(string) bool { return true })
	assert.Equal(t, []string{"high", "mid-a", "mid-b", "low"}, ready)

	ready = g.ReadyTasks(map[string]bool{"low": true}, func(id string) bool { return id == "blocked" })
	assert.Equal(t, []string{"blocked"}, ready)
}

func TestReadyTasksSkipsCompleted(t *testing.T) {
	g, err := New("wf", "", []*models.Task{task("a"), task("b", "a")})
	require.NoError(t, err)

	ready := g.ReadyTasks(map[string]bool{"a": true}, nil)
	assert.Equal(t, []string{"b"}, ready)
}

func TestDescendants(t *testing.T) {
	// a -> b -> d, a -> c -> d, e independent
	g, err := New("wf", "", []*models.Task{
		task("a"), task("b", "a"), task("c", "a"), task("d", "b", "c"), task("e"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c", "d"}, g.Descendants("a"))
	assert.Equal(t, []string{"d"}, g.Descendants("c"))
	assert.Empty(t, g.Descendants("e"))
}

func TestLevels(t *testing.T) {
	g, err := New("wf", "", []*models.Task{
		task("fetch"), task("parse", "fetch"), task("lint"), task("report", "parse", "lint"),
	})
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"fetch", "lint"}, {"parse"}, {"report"}}, g.Levels())
	assert.Equal(t, []string{"fetch", "lint", "parse", "report"}, g.TopologicalSort())
}

func TestTaskReturnsCopy(t *testing.T) {
	g, err := New("wf", "", []*models.Task{task("a")})
	require.NoError(t, err)

	got := g.Task("a")
	got.Title = "mutated"
	assert.Equal(t, "a", g.Task("a").Title)
	assert.Nil(t, g.Task("missing"))
	assert.True(t, g.Has("a"))
	assert.False(t, g.Has("missing"))
}

// genDAG draws a random acyclic graph: each task may only depend on tasks
// with a smaller index.
func genDAG(t *rapid.T) []*models.Task {
	n := rapid.IntRange(1, 12).Draw(t, "n")
	tasks := make([]*models.Task, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		var deps []string
		for j := 0; j < i; j++ {
			if rapid.Bool().Draw(t, "edge") {
				deps = append(deps, string(rune('a'+j)))
			}
		}
		tasks[i] = &models.Task{
			ID:        id,
			DependsOn: deps,
			Priority:  rapid.IntRange(0, 3).Draw(t, "priority"),
		}
	}
	return tasks
}

func TestTopologicalSortRespectsEdges(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tasks := genDAG(t)
		g, err := New("wf", "", tasks)
		if err != nil {
			t.Fatalf("unexpected error for acyclic input: %v", err)
		}

		order := g.TopologicalSort()
		if len(order) != len(tasks) {
			t.Fatalf("order has %d entries, want %d", len(order), len(tasks))
		}
		pos := make(map[string]int, len(order))
		for i, id := range order {
			pos[id] = i
		}
		for _, tk := range tasks {
			for _, dep := range tk.DependsOn {
				if pos[dep] >= pos[tk.ID] {
					t.Fatalf("dependency %s placed after %s", dep, tk.ID)
				}
			}
		}
	})
}

func TestReadyTasksOnlyReturnsUnblocked(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tasks := genDAG(t)
		g, err := New("wf", "", tasks)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		completed := make(map[string]bool)
		for _, tk := range tasks {
			if rapid.Bool().Draw(t, "done") {
				completed[tk.ID] = true
			}
		}
		ready := g.ReadyTasks(completed, nil)
		again := g.ReadyTasks(completed, nil)
		if len(ready) != len(again) {
			t.Fatalf("ReadyTasks not deterministic")
		}
		for i, id := range ready {
			if again[i] != id {
				t.Fatalf("ReadyTasks not deterministic at %d", i)
			}
			if completed[id] {
				t.Fatalf("completed task %s reported ready", id)
			}
			for _, dep := range g.Dependencies(id) {
				if !completed[dep] {
					t.Fatalf("task %s ready with incomplete dependency %s", id, dep)
				}
			}
		}
	})
}

func TestAddingBackEdgeCreatesCycle(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tasks := genDAG(t)
		if len(tasks) < 2 {
			return
		}
		// Make the first task depend on the last one, and the last on the first.
		first, last := tasks[0], tasks[len(tasks)-1]
		first.DependsOn = append(first.DependsOn, last.ID)
		last.DependsOn = append(last.DependsOn, first.ID)

		_, err := New("wf", "", tasks)
		if !errors.Is(err, ErrCycleDetected) {
			t.Fatalf("expected cycle error, got %v", err)
		}
	})
}
