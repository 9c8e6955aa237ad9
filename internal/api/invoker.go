package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/conclave/internal/agent"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// defaultSystemPrompt frames every agent call.
const defaultSystemPrompt = "You are a specialist agent in a multi-agent software development workflow. " +
	"Complete the assigned task using the provided artifacts and reply with a single JSON object."

// responseFormat is appended to every prompt.
const responseFormat = `Respond with exactly one JSON object of the form:
{"payload": {"<artifact key>": <value>, ...}, "confidence": <number between 0 and 1>, "writes": ["<artifact key>", ...]}
Include one payload entry for every artifact key you write.`

// ErrMalformedResponse is returned when the model reply holds no usable JSON object.
var ErrMalformedResponse = errors.New("malformed agent response")

// ClaudeInvoker runs tasks by prompting a Claude model.
type ClaudeInvoker struct {
	agentID      string
	capabilities models.CapabilitySet
	model        anthropic.Model
	system       string
	completer    Completer
}

// NewClaudeInvoker builds an invoker for a roster entry. Spec.Model and
// spec.System override the defaults when set.
func NewClaudeInvoker(c Completer, spec models.AgentSpec) *ClaudeInvoker {
	system := spec.System
	if system == "" {
		system = defaultSystemPrompt
	}
	return &ClaudeInvoker{
		agentID:      spec.ID,
		capabilities: spec.Capabilities.Normalize(),
		model:        anthropic.Model(spec.Model),
		system:       system,
		completer:    c,
	}
}

// Invoke prompts the model and decodes its reply into a Result.
func (ci *ClaudeInvoker) Invoke(ctx context.Context, in agent.Input) (*models.Result, error) {
	if !ci.capabilities.Covers(in.Capabilities) {
		return nil, fmt.Errorf("%w: %s lacks %s", agent.ErrCapabilityMismatch, ci.agentID, in.Capabilities)
	}

	prompt, err := BuildPrompt(in)
	if err != nil {
		return nil, &agent.AgentError{AgentID: ci.agentID, TaskID: in.TaskID, Err: err}
	}

	resp, err := ci.completer.Complete(ctx, ci.model, ci.system, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", agent.ErrTimeout, ctx.Err())
		}
		return nil, &agent.AgentError{AgentID: ci.agentID, TaskID: in.TaskID, Err: err}
	}

	result, err := ParseResult(resp.Text)
	if err != nil {
		return nil, &agent.AgentError{AgentID: ci.agentID, TaskID: in.TaskID, Err: err}
	}
	if len(result.Writes) == 0 {
		result.Writes = append([]string(nil), in.Writes...)
	}
	result.TokensUsed = resp.InputTokens + resp.OutputTokens
	return result, nil
}

var _ agent.Invoker = (*ClaudeInvoker)(nil)

// BuildPrompt renders a task input as a user prompt. Artifacts and params are
// emitted in key order so identical inputs produce identical prompts.
func BuildPrompt(in agent.Input) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Task %s\n", in.TaskID)
	if in.Title != "" {
		fmt.Fprintf(&sb, "%s\n", in.Title)
	}
	fmt.Fprintf(&sb, "\nRequired capabilities: %s\nAttempt: %d\n", strings.Join(in.Capabilities, ", "), in.Attempt)

	if len(in.Params) > 0 {
		data, err := json.MarshalIndent(in.Params, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode params: %w", err)
		}
		fmt.Fprintf(&sb, "\n## Parameters\n%s\n", data)
	}

	if len(in.Artifacts) > 0 {
		sb.WriteString("\n## Artifacts\n")
		keys := make([]string, 0, len(in.Artifacts))
		for k := range in.Artifacts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			data, err := json.Marshal(in.Artifacts[k])
			if err != nil {
				return "", fmt.Errorf("encode artifact %s: %w", k, err)
			}
			fmt.Fprintf(&sb, "### %s\n%s\n", k, data)
		}
	}

	if len(in.Writes) > 0 {
		fmt.Fprintf(&sb, "\nArtifacts to write: %s\n", strings.Join(in.Writes, ", "))
	}
	sb.WriteString("\n")
	sb.WriteString(responseFormat)
	return sb.String(), nil
}

type wireResult struct {
	Payload    map[string]any `json:"payload"`
	Confidence *float64       `json:"confidence"`
	Writes     []string       `json:"writes"`
}

// ParseResult extracts the JSON object from a model reply. Surrounding prose
// and markdown code fences are ignored. Confidence outside [0,1] is clamped.
func ParseResult(text string) (*models.Result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var w wireResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if w.Payload == nil {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformedResponse)
	}
	if w.Confidence != nil {
		c := *w.Confidence
		if c < 0 {
			c = 0
		} else if c > 1 {
			c = 1
		}
		w.Confidence = &c
	}
	return &models.Result{Payload: w.Payload, Confidence: w.Confidence, Writes: w.Writes}, nil
}
