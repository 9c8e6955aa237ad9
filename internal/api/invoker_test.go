package api

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/conclave/internal/agent"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// fakeCompleter records the last request and replies from a script.
type fakeCompleter struct {
	model  anthropic.Model
	system string
	prompt string
	reply  *Completion
	err    error
	block  bool
}

func (f *fakeCompleter) Complete(ctx context.Context, model anthropic.Model, system, prompt string) (*Completion, error) {
	f.model, f.system, f.prompt = model, system, prompt
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.reply, f.err
}

func reviewSpec() models.AgentSpec {
	return models.AgentSpec{
		ID:           "reviewer",
		Kind:         "claude",
		Capabilities: models.NewCapabilitySet("review"),
		Model:        string(anthropic.ModelClaudeHaiku4_5_20251001),
	}
}

func reviewInput() agent.Input {
	return agent.Input{
		TaskID:       "review",
		Title:        "Review the API design",
		Capabilities: models.NewCapabilitySet("review"),
		Attempt:      2,
		Artifacts:    map[string]any{"spec": "v1", "design": map[string]any{"routes": 3}},
		Params:       map[string]any{"strict": true},
		Writes:       []string{"verdict"},
	}
}

func TestClaudeInvoker_Success(t *testing.T) {
	fc := &fakeCompleter{reply: &Completion{
		Text:         "Here you go:\n```json\n{\"payload\": {\"verdict\": \"approve\"}, \"confidence\": 0.9}\n```",
		InputTokens:  120,
		OutputTokens: 30,
	}}
	inv := NewClaudeInvoker(fc, reviewSpec())

	res, err := inv.Invoke(context.Background(), reviewInput())
	require.NoError(t, err)

	assert.Equal(t, "approve", res.Payload["verdict"])
	require.NotNil(t, res.Confidence)
	assert.InDelta(t, 0.9, *res.Confidence, 1e-9)
	assert.Equal(t, []string{"verdict"}, res.Writes, "declared writes fill in when reply omits them")
	assert.Equal(t, int64(150), res.TokensUsed)

	assert.Equal(t, anthropic.ModelClaudeHaiku4_5_20251001, fc.model)
	assert.Equal(t, defaultSystemPrompt, fc.system)
	assert.Contains(t, fc.prompt, "## Task review")
	assert.Contains(t, fc.prompt, "Attempt: 2")
	assert.Contains(t, fc.prompt, `"strict": true`)
	assert.Less(t, strings.Index(fc.prompt, "### design"), strings.Index(fc.prompt, "### spec"), "artifacts are sorted")
}

func TestClaudeInvoker_CapabilityMismatch(t *testing.T) {
	fc := &fakeCompleter{}
	inv := NewClaudeInvoker(fc, reviewSpec())

	in := reviewInput()
	in.Capabilities = models.NewCapabilitySet("deploy")
	_, err := inv.Invoke(context.Background(), in)
	assert.ErrorIs(t, err, agent.ErrCapabilityMismatch)
	assert.Empty(t, fc.prompt, "no request is sent")
}

func TestClaudeInvoker_Errors(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		inv := NewClaudeInvoker(&fakeCompleter{err: errors.New("overloaded")}, reviewSpec())
		_, err := inv.Invoke(context.Background(), reviewInput())

		var ae *agent.AgentError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, "reviewer", ae.AgentID)
		assert.Equal(t, agent.FailureAgentError, agent.Classify(err))
	})

	t.Run("malformed reply", func(t *testing.T) {
		inv := NewClaudeInvoker(&fakeCompleter{reply: &Completion{Text: "I could not do it"}}, reviewSpec())
		_, err := inv.Invoke(context.Background(), reviewInput())
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("deadline", func(t *testing.T) {
		inv := NewClaudeInvoker(&fakeCompleter{block: true}, reviewSpec())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := inv.Invoke(ctx, reviewInput())
		assert.ErrorIs(t, err, agent.ErrTimeout)
	})
}

func TestParseResult(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantErr  bool
		wantConf *float64
		writes   []string
	}{
		{"plain", `{"payload":{"a":1},"confidence":0.5,"writes":["a"]}`, false, models.Confidence(0.5), []string{"a"}},
		{"no confidence", `{"payload":{"a":1}}`, false, nil, nil},
		{"clamped high", `{"payload":{},"confidence":4}`, false, models.Confidence(1), nil},
		{"clamped low", `{"payload":{},"confidence":-2}`, false, models.Confidence(0), nil},
		{"no object", "nothing here", true, nil, nil},
		{"missing payload", `{"confidence":0.5}`, true, nil, nil},
		{"broken json", `{"payload": {`, true, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ParseResult(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.writes, res.Writes)
			if tt.wantConf == nil {
				assert.Nil(t, res.Confidence)
			} else {
				require.NotNil(t, res.Confidence)
				assert.InDelta(t, *tt.wantConf, *res.Confidence, 1e-9)
			}
		})
	}
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	a, err := BuildPrompt(reviewInput())
	require.NoError(t, err)
	b, err := BuildPrompt(reviewInput())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, a, "Artifacts to write: verdict")
}
