package api

import (
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestNewClient_WithAPIKey(t *testing.T) {
	client, err := NewClient(ClientConfig{
		APIKey: "test-key-123",
		Model:  anthropic.ModelClaudeHaiku4_5_20251001,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeHaiku4_5_20251001 {
		t.Errorf("Model = %q, want %q", client.Model(), anthropic.ModelClaudeHaiku4_5_20251001)
	}
	if client.Tracker() == nil {
		t.Error("Tracker should not be nil")
	}
}

func TestNewClient_WithEnvVar(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-test-key")

	client, err := NewClient(ClientConfig{})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if client.Model() != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("Default model = %q, want %q", client.Model(), anthropic.ModelClaudeSonnet4_20250514)
	}
}

func TestNewClient_NoAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewClient(ClientConfig{})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestClient_ResolveModel(t *testing.T) {
	direct := &Client{model: anthropic.ModelClaudeSonnet4_20250514, tracker: NewTokenTracker()}
	if got := direct.resolveModel(""); got != anthropic.ModelClaudeSonnet4_20250514 {
		t.Errorf("empty model should use default, got %q", got)
	}
	if got := direct.resolveModel(anthropic.ModelClaudeOpus4_1_20250805); got != anthropic.ModelClaudeOpus4_1_20250805 {
		t.Errorf("direct client should not translate, got %q", got)
	}

	br := &Client{model: anthropic.ModelClaudeSonnet4_20250514, bedrock: true, tracker: NewTokenTracker()}
	if got := br.resolveModel(""); got != "us.anthropic.claude-sonnet-4-20250514-v1:0" {
		t.Errorf("bedrock default = %q", got)
	}
	if got := br.resolveModel("custom-model"); got != "custom-model" {
		t.Errorf("unknown model should pass through, got %q", got)
	}
	if got := br.resolveModel("us.anthropic.claude-opus-4-1-20250805-v1:0"); got != "us.anthropic.claude-opus-4-1-20250805-v1:0" {
		t.Errorf("bedrock-form model should pass through, got %q", got)
	}
}

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add(100, 50)
	tracker.Add(200, 100)

	input, output := tracker.Total()
	if input != 300 || output != 150 {
		t.Errorf("Total = (%d, %d), want (300, 150)", input, output)
	}
	if tracker.Calls() != 2 {
		t.Errorf("Calls = %d, want 2", tracker.Calls())
	}
}

func TestTokenTracker_Cost(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add(1_000_000, 1_000_000)

	// $3 input + $15 output
	expected := 18.0
	epsilon := 0.000001
	if cost := tracker.Cost(); cost < expected-epsilon || cost > expected+epsilon {
		t.Errorf("Cost = %f, want %f", cost, expected)
	}
}
