package config

import (
	"errors"
	"testing"
)

func TestResolveAPIKey(t *testing.T) {
	t.Run("from environment variable", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

		cfg := &Config{Anthropic: AnthropicConfig{APIKey: "sk-ant-config-key"}}
		key, src, err := cfg.ResolveAPIKey()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != "sk-ant-test-key" || src != KeySourceEnv {
			t.Errorf("got (%q, %s), want env key", key, src)
		}
	})

	t.Run("from config with expansion", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")
		t.Setenv("MY_KEY", "sk-ant-expanded")

		cfg := &Config{Anthropic: AnthropicConfig{APIKey: "${MY_KEY}"}}
		key, src, err := cfg.ResolveAPIKey()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if key != "sk-ant-expanded" || src != KeySourceConfig {
			t.Errorf("got (%q, %s), want expanded config key", key, src)
		}
	})

	t.Run("bedrock needs no key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		cfg := &Config{Anthropic: AnthropicConfig{UseBedrock: true}}
		_, src, err := cfg.ResolveAPIKey()
		if err != nil || src != KeySourceBedrock {
			t.Errorf("got (%s, %v), want bedrock source", src, err)
		}
	})

	t.Run("no key configured", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		_, src, err := (&Config{}).ResolveAPIKey()
		if !errors.Is(err, ErrNoAPIKey) || src != KeySourceNone {
			t.Errorf("got (%s, %v), want ErrNoAPIKey", src, err)
		}
	})
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"valid", "sk-ant-REDACTED", false},
		{"empty", "", true},
		{"wrong prefix", "sk-openai-abcdefghijklmnop", true},
		{"too short", "sk-ant-abc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateAPIKey(tt.key); (err != nil) != tt.wantErr {
				t.Errorf("ValidateAPIKey(%q) error = %v, wantErr %v", tt.key, err, tt.wantErr)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", "(not set)"},
		{"short", "***"},
		{"sk-ant-REDACTED", "sk-ant-...mnop"},
	}
	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
