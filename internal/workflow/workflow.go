// Package workflow loads workflow definitions and agent rosters from YAML files.
package workflow

import (
	"fmt"
	"os"
	"sort"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/conclave/internal/graph"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// Definition is a parsed workflow file.
type Definition struct {
	// Workflow is the validated task graph.
	Workflow *graph.Workflow
	// Context holds project context entries seeded as baseline artifacts.
	Context map[string]any
}

// file is the on-disk shape of a workflow definition.
type file struct {
	Name     string         `yaml:"name"`
	Version  string         `yaml:"version"`
	Context  map[string]any `yaml:"context"`
	Defaults struct {
		Retry    models.RetryPolicy `yaml:"retry"`
		Timeout  time.Duration      `yaml:"timeout"`
		Priority int                `yaml:"priority"`
	} `yaml:"defaults"`
	Tasks taskList `yaml:"tasks"`
}

// taskList accepts either a sequence of tasks or a mapping of id to task.
type taskList []*models.Task

// UnmarshalYAML decodes both task forms. In the mapping form the key is the
// task id and an explicit id field must agree with it.
func (l *taskList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var tasks []*models.Task
		if err := node.Decode(&tasks); err != nil {
			return err
		}
		*l = tasks
		return nil
	case yaml.MappingNode:
		tasks := make([]*models.Task, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			var t models.Task
			if err := node.Content[i+1].Decode(&t); err != nil {
				return fmt.Errorf("task %s: %w", key.Value, err)
			}
			if t.ID != "" && t.ID != key.Value {
				return fmt.Errorf("line %d: task key %q does not match id %q", key.Line, key.Value, t.ID)
			}
			t.ID = key.Value
			tasks = append(tasks, &t)
		}
		*l = tasks
		return nil
	case 0:
		return nil
	default:
		return fmt.Errorf("line %d: tasks must be a list or a mapping", node.Line)
	}
}

// Load reads and parses a workflow file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a workflow definition and builds its graph. Defaults apply to
// tasks that leave the corresponding field unset.
func Parse(data []byte) (*Definition, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	if f.Name == "" {
		return nil, fmt.Errorf("workflow name is required")
	}
	if len(f.Tasks) == 0 {
		return nil, fmt.Errorf("workflow %s has no tasks", f.Name)
	}

	tasks := make([]*models.Task, 0, len(f.Tasks))
	for i, t := range f.Tasks {
		if t == nil {
			return nil, fmt.Errorf("task %d is empty", i)
		}
		t.Capabilities = t.Capabilities.Normalize()
		if t.Retry.IsZero() {
			t.Retry = f.Defaults.Retry
		}
		if t.Timeout == 0 {
			t.Timeout = f.Defaults.Timeout
		}
		if t.Priority == 0 {
			t.Priority = f.Defaults.Priority
		}
		tasks = append(tasks, t)
	}

	wf, err := graph.New(f.Name, f.Version, tasks)
	if err != nil {
		return nil, err
	}
	return &Definition{Workflow: wf, Context: f.Context}, nil
}

// ContextKeys returns the project context keys in sorted order.
func (d *Definition) ContextKeys() []string {
	keys := make([]string, 0, len(d.Context))
	for k := range d.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
