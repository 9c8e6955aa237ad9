package models

import "time"

// AgentSpec describes an agent as declared in a roster file.
type AgentSpec struct {
	// ID is the unique identifier for this agent.
	ID string `json:"id" yaml:"id"`
	// Kind selects the invoker implementation (for example "claude" or "echo").
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Capabilities is the set of capabilities the agent provides.
	Capabilities CapabilitySet `json:"capabilities" yaml:"capabilities"`
	// MaxConcurrent is the number of tasks the agent may run at once.
	MaxConcurrent int `json:"max_concurrent,omitempty" yaml:"max_concurrent,omitempty"`
	// Model optionally overrides the model for LLM-backed agents.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
	// System is an optional system prompt for LLM-backed agents.
	System string `json:"system,omitempty" yaml:"system,omitempty"`
	// Confidence is the fixed confidence reported by static agents.
	Confidence *float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	// Delay is an artificial latency for static agents.
	Delay time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// ExecutionRecord is the per-task mutable state of a session.
// Callers only ever see copies.
type ExecutionRecord struct {
	TaskID     string     `json:"task_id"`
	Status     TaskStatus `json:"status"`
	Attempts   int        `json:"attempts"`
	AgentID    string     `json:"agent_id,omitempty"`
	ReadyAt    time.Time  `json:"ready_at,omitempty"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	FinishedAt time.Time  `json:"finished_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	// Reason explains a Skipped or propagated Failed status.
	Reason string `json:"reason,omitempty"`
}

// Result is the output of one agent call.
type Result struct {
	// Payload is the structured agent output.
	Payload map[string]any `json:"payload,omitempty"`
	// Confidence ranks this result against conflicting writes. Nil means unknown.
	Confidence *float64 `json:"confidence,omitempty"`
	// Writes lists the artifact keys this result writes.
	Writes []string `json:"writes,omitempty"`
	// TokensUsed is reported by LLM-backed agents.
	TokensUsed int64 `json:"tokens_used,omitempty"`
}

// ValueFor returns the value written to key: Payload[key] when present,
// otherwise the whole payload.
func (r *Result) ValueFor(key string) any {
	if r == nil {
		return nil
	}
	if v, ok := r.Payload[key]; ok {
		return v
	}
	return r.Payload
}

// Confidence returns a pointer to v, for building results and specs.
func Confidence(v float64) *float64 {
	return &v
}
