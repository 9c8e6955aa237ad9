package orchestrator

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/ShayCichocki/conclave/internal/agent"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// AgentStats summarizes one agent's activity in a session.
type AgentStats struct {
	AgentID       string               `json:"agent_id"`
	Capabilities  models.CapabilitySet `json:"capabilities"`
	MaxConcurrent int                  `json:"max_concurrent"`
	InFlight      int                  `json:"in_flight"`
	Dispatches    int                  `json:"dispatches"`
	Successes     int                  `json:"successes"`
	Failures      int                  `json:"failures"`
	TokensUsed    int64                `json:"tokens_used"`
}

// SuccessRate is successes over finished attempts, Laplace smoothed so a
// fresh agent ranks at 0.5.
func (s AgentStats) SuccessRate() float64 {
	return float64(s.Successes+1) / float64(s.Successes+s.Failures+2)
}

// registeredAgent is the registry's mutable view of one agent.
type registeredAgent struct {
	agent *agent.Agent
	stats AgentStats
}

// AgentRegistry catalogues agents by capability and tracks their load.
// It provides thread-safe storage and retrieval of agent information.
type AgentRegistry struct {
	// agents maps agent IDs to registry entries.
	agents map[string]*registeredAgent
	// mu protects all fields.
	mu sync.RWMutex
}

// NewAgentRegistry creates a new AgentRegistry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{
		agents: make(map[string]*registeredAgent),
	}
}

// Register adds an agent to the registry.
func (r *AgentRegistry) Register(a *agent.Agent) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("register agent: id is required")
	}
	if a.Invoker == nil {
		return fmt.Errorf("register agent %s: invoker is required", a.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[a.ID]; exists {
		return fmt.Errorf("register agent %s: already registered", a.ID)
	}
	// The registry keeps its own copy; the caller's Agent is left untouched.
	own := *a
	if own.MaxConcurrent < 1 {
		own.MaxConcurrent = 1
	}
	own.Capabilities = a.Capabilities.Normalize()
	r.agents[own.ID] = &registeredAgent{
		agent: &own,
		stats: AgentStats{
			AgentID:       own.ID,
			Capabilities:  own.Capabilities.Clone(),
			MaxConcurrent: own.MaxConcurrent,
		},
	}
	return nil
}

// GetAgent retrieves an agent by ID.
// Returns nil if the agent is not registered.
func (r *AgentRegistry) GetAgent(agentID string) *agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.agents[agentID]; ok {
		return e.agent
	}
	return nil
}

// Count returns the number of registered agents.
func (r *AgentRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// CanSatisfy reports whether any registered agent covers required.
func (r *AgentRegistry) CanSatisfy(required models.CapabilitySet) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.agents {
		if e.agent.Capabilities.Covers(required) {
			return true
		}
	}
	return false
}

// FindCandidates returns agents whose capabilities are a superset of
// required, ordered by current load ascending, success rate descending,
// then ID ascending.
func (r *AgentRegistry) FindCandidates(required models.CapabilitySet) []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*registeredAgent
	for _, e := range r.agents {
		if e.agent.Capabilities.Covers(required) {
			matches = append(matches, e)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].stats, matches[j].stats
		if a.InFlight != b.InFlight {
			return a.InFlight < b.InFlight
		}
		if ra, rb := a.SuccessRate(), b.SuccessRate(); ra != rb {
			return ra > rb
		}
		return a.AgentID < b.AgentID
	})

	out := make([]*agent.Agent, len(matches))
	for i, e := range matches {
		out[i] = e.agent
	}
	return out
}

// Reserve takes one concurrency slot on the agent. It fails with
// *AgentAtCapacityError instead of blocking when the agent is full.
func (r *AgentRegistry) Reserve(agentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.agents[agentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	if e.stats.InFlight >= e.agent.MaxConcurrent {
		return &AgentAtCapacityError{AgentID: agentID, Limit: e.agent.MaxConcurrent}
	}
	e.stats.InFlight++
	e.stats.Dispatches++
	return nil
}

// Release returns one concurrency slot to the agent.
func (r *AgentRegistry) Release(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.agents[agentID]
	if !ok || e.stats.InFlight == 0 {
		log.Printf("[registry] WARNING: release of %s without reservation", agentID)
		return
	}
	e.stats.InFlight--
}

// RecordOutcome feeds one finished attempt into the agent's success rate.
func (r *AgentRegistry) RecordOutcome(agentID string, success bool, tokens int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.agents[agentID]
	if !ok {
		return
	}
	if success {
		e.stats.Successes++
	} else {
		e.stats.Failures++
	}
	e.stats.TokensUsed += tokens
}

// Load returns the agent's current in-flight count.
func (r *AgentRegistry) Load(agentID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.agents[agentID]; ok {
		return e.stats.InFlight
	}
	return 0
}

// Stats returns a copy of every agent's statistics in ID order.
func (r *AgentRegistry) Stats() []AgentStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AgentStats, 0, len(r.agents))
	for _, e := range r.agents {
		s := e.stats
		s.Capabilities = s.Capabilities.Clone()
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}
