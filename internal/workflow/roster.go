package workflow

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/conclave/pkg/models"
)

// Agent kinds understood by the CLI agent factory.
const (
	KindEcho   = "echo"
	KindClaude = "claude"
)

// defaultAgents is the built-in agent catalogue.
var defaultAgents = []string{
	"system-architect",
	"backend-developer",
	"frontend-developer",
	"database-specialist",
	"security-auditor",
	"performance-optimizer",
	"devops-engineer",
	"test-strategist",
	"code-quality-analyzer",
	"ui-ux-designer",
	"api-designer",
	"documentation-specialist",
	"debugger",
	"general-purpose",
	"llm-ai-agents-and-eng-research",
	"meta-agent",
	"work-completion-summary",
}

type rosterFile struct {
	Agents []models.AgentSpec `yaml:"agents"`
}

// LoadRoster reads an agent roster file.
func LoadRoster(path string) ([]models.AgentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	specs, err := ParseRoster(data)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return specs, nil
}

// ParseRoster decodes and validates a roster. Kind defaults to echo and
// MaxConcurrent to 1.
func ParseRoster(data []byte) ([]models.AgentSpec, error) {
	var f rosterFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	if len(f.Agents) == 0 {
		return nil, fmt.Errorf("roster declares no agents")
	}

	seen := make(map[string]bool, len(f.Agents))
	out := make([]models.AgentSpec, 0, len(f.Agents))
	for i, spec := range f.Agents {
		if spec.ID == "" {
			return nil, fmt.Errorf("agent %d has no id", i)
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("duplicate agent id: %s", spec.ID)
		}
		seen[spec.ID] = true

		if spec.Kind == "" {
			spec.Kind = KindEcho
		}
		if spec.Kind != KindEcho && spec.Kind != KindClaude {
			return nil, fmt.Errorf("agent %s: unknown kind %q", spec.ID, spec.Kind)
		}
		spec.Capabilities = spec.Capabilities.Normalize()
		if len(spec.Capabilities) == 0 {
			return nil, fmt.Errorf("agent %s declares no capabilities", spec.ID)
		}
		if spec.MaxConcurrent < 1 {
			spec.MaxConcurrent = 1
		}
		if spec.Confidence != nil && (*spec.Confidence < 0 || *spec.Confidence > 1) {
			return nil, fmt.Errorf("agent %s: confidence %v outside [0,1]", spec.ID, *spec.Confidence)
		}
		out = append(out, spec)
	}
	return out, nil
}

// DefaultRoster returns the built-in catalogue. Each agent provides one
// capability named after itself, runs one task at a time and uses the echo invoker.
func DefaultRoster() []models.AgentSpec {
	out := make([]models.AgentSpec, 0, len(defaultAgents))
	for _, name := range defaultAgents {
		out = append(out, models.AgentSpec{
			ID:            name,
			Kind:          KindEcho,
			Capabilities:  models.NewCapabilitySet(name),
			MaxConcurrent: 1,
		})
	}
	return out
}
