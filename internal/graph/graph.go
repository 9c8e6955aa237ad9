// Package graph provides the immutable workflow graph used for task scheduling.
package graph

import (
	"fmt"
	"sort"

	"github.com/ShayCichocki/conclave/pkg/models"
)

// CapabilityIndex answers whether some agent can satisfy a capability set.
// The agent registry implements it.
type CapabilityIndex interface {
	CanSatisfy(required models.CapabilitySet) bool
}

// Workflow is a named, versioned directed acyclic graph of tasks.
// Tasks are nodes, and edges represent "blocked by" relationships.
// A Workflow is never mutated after New returns it.
type Workflow struct {
	name    string
	version string
	// nodes maps task ID to the task itself.
	nodes map[string]*models.Task
	// edges maps task ID to IDs of tasks it depends on (is blocked by).
	edges map[string][]string
	// dependents maps task ID to IDs of tasks blocked by it.
	dependents map[string][]string
	// ids holds every task ID in lexical order.
	ids []string
}

// New validates tasks and constructs a workflow graph.
// It fails with DuplicateTaskError, UnknownDependencyError or CycleDetectedError
// and never returns a partially valid graph.
func New(name, version string, tasks []*models.Task) (*Workflow, error) {
	g := &Workflow{
		name:       name,
		version:    version,
		nodes:      make(map[string]*models.Task, len(tasks)),
		edges:      make(map[string][]string, len(tasks)),
		dependents: make(map[string][]string, len(tasks)),
	}

	// First pass: register all tasks as nodes.
	for _, task := range tasks {
		if task == nil || task.ID == "" {
			return nil, ErrEmptyTaskID
		}
		if _, exists := g.nodes[task.ID]; exists {
			return nil, &DuplicateTaskError{TaskID: task.ID}
		}
		c := task.Clone()
		c.Capabilities = c.Capabilities.Normalize()
		g.nodes[task.ID] = c
		g.ids = append(g.ids, task.ID)
	}
	sort.Strings(g.ids)

	// Second pass: build edges in a deterministic order.
	for _, id := range g.ids {
		deps := uniqueSorted(g.nodes[id].DependsOn)
		for _, depID := range deps {
			if _, exists := g.nodes[depID]; !exists {
				return nil, &UnknownDependencyError{TaskID: id, Dependency: depID}
			}
			g.dependents[depID] = append(g.dependents[depID], id)
		}
		g.edges[id] = deps
		g.nodes[id].DependsOn = deps
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CycleDetectedError{Cycle: cycle}
	}
	return g, nil
}

// findCycle runs a depth-first search with coloring and returns the first
// cycle found as a path that starts and ends on the same task, or nil.
func (g *Workflow) findCycle() []string {
	const (
		white = iota // unvisited
		gray         // on the current path
		black        // fully explored
	)
	colors := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		stack = append(stack, id)
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case gray:
				// Back edge: the cycle is the stack suffix starting at depID.
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == depID {
						cycle = append(append([]string{}, stack[i:]...), depID)
						break
					}
				}
				return true
			case white:
				if visit(depID) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = black
		return false
	}

	for _, id := range g.ids {
		if colors[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

// ValidateCapabilities checks every task against the agent index and fails with
// UnsatisfiableCapabilityError for the first task (in ID order) nobody can run.
func (g *Workflow) ValidateCapabilities(index CapabilityIndex) error {
	if index == nil {
		return fmt.Errorf("validate capabilities: no agent registry supplied")
	}
	for _, id := range g.ids {
		task := g.nodes[id]
		if !index.CanSatisfy(task.Capabilities) {
			return &UnsatisfiableCapabilityError{TaskID: id, Required: task.Capabilities.Clone()}
		}
	}
	return nil
}

// Name returns the workflow name.
func (g *Workflow) Name() string { return g.name }

// Version returns the workflow version.
func (g *Workflow) Version() string { return g.version }

// Size returns the number of tasks in the graph.
func (g *Workflow) Size() int { return len(g.nodes) }

// IDs returns every task ID in lexical order.
func (g *Workflow) IDs() []string {
	return append([]string(nil), g.ids...)
}

// Task returns a copy of the task for a given ID, or nil if not found.
func (g *Workflow) Task(id string) *models.Task {
	return g.nodes[id].Clone()
}

// Has reports whether the graph contains the task.
func (g *Workflow) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Dependencies returns the IDs of tasks that the given task depends on.
func (g *Workflow) Dependencies(id string) []string {
	return append([]string(nil), g.edges[id]...)
}

// Dependents returns the IDs of tasks that depend directly on the given task.
func (g *Workflow) Dependents(id string) []string {
	return append([]string(nil), g.dependents[id]...)
}

// Descendants returns every task transitively blocked by id, in lexical order.
func (g *Workflow) Descendants(id string) []string {
	seen := make(map[string]bool)
	queue := append([]string(nil), g.dependents[id]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		queue = append(queue, g.dependents[next]...)
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// ReadyTasks returns the tasks whose every dependency is in completed and
// for which isPending reports true, ordered by priority (highest first) and
// then by ID. It is a pure function of its arguments.
func (g *Workflow) ReadyTasks(completed map[string]bool, isPending func(id string) bool) []string {
	var ready []string
	for _, id := range g.ids {
		if isPending != nil && !isPending(id) {
			continue
		}
		if completed[id] {
			continue
		}
		allDepsComplete := true
		for _, depID := range g.edges[id] {
			if !completed[depID] {
				allDepsComplete = false
				break
			}
		}
		if allDepsComplete {
			ready = append(ready, id)
		}
	}
	g.SortByPriority(ready)
	return ready
}

// SortByPriority orders ids by descending priority, then lexical ID.
func (g *Workflow) SortByPriority(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		pi, pj := g.priority(ids[i]), g.priority(ids[j])
		if pi != pj {
			return pi > pj
		}
		return ids[i] < ids[j]
	})
}

func (g *Workflow) priority(id string) int {
	if t, ok := g.nodes[id]; ok {
		return t.Priority
	}
	return 0
}

// TopologicalSort returns task IDs so that all dependencies come before the
// tasks that depend on them. Among tasks that are available at the same time
// the priority order applies.
func (g *Workflow) TopologicalSort() []string {
	var out []string
	for _, level := range g.Levels() {
		out = append(out, level...)
	}
	return out
}

// Levels groups tasks into phases: level 0 has no dependencies, level n
// depends only on earlier levels. Each level is priority ordered.
func (g *Workflow) Levels() [][]string {
	depth := make(map[string]int, len(g.nodes))
	var depthOf func(id string) int
	depthOf = func(id string) int {
		if d, ok := depth[id]; ok {
			return d
		}
		d := 0
		for _, dep := range g.edges[id] {
			if dd := depthOf(dep) + 1; dd > d {
				d = dd
			}
		}
		depth[id] = d
		return d
	}

	var levels [][]string
	for _, id := range g.ids {
		d := depthOf(id)
		for len(levels) <= d {
			levels = append(levels, nil)
		}
		levels[d] = append(levels[d], id)
	}
	for _, level := range levels {
		g.SortByPriority(level)
	}
	return levels
}

func uniqueSorted(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
