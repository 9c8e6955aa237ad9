package main

import (
	"testing"
	"time"

	"github.com/ShayCichocki/conclave/internal/config"
)

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"run.max_parallel_agents", "8", "8"},
		{"run.fail_fast", "false", "false"},
		{"run.global_timeout", "90s", "1m30s"},
		{"run.priority", "critical", "critical"},
		{"retry.max_attempts", "5", "5"},
		{"retry.multiplier", "1.5", "1.5"},
		{"anthropic.model", "claude-opus-4-20250514", "claude-opus-4-20250514"},
		{"anthropic.use_bedrock", "true", "true"},
		{"storage.db_path", "/tmp/archive.db", "/tmp/archive.db"},
		{"TUI.Refresh_Rate", "250ms", "250ms"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := config.Default()
			if err := setConfigValue(cfg, tt.key, tt.value); err != nil {
				t.Fatalf("setConfigValue(%q, %q) error: %v", tt.key, tt.value, err)
			}
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%q) error: %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("getConfigValue(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSetConfigValue_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"run.max_parallel_agents", "many"},
		{"run.fail_fast", "maybe"},
		{"run.task_timeout", "soon"},
		{"retry.multiplier", "x"},
		{"anthropic.api_key", "not-a-key"},
		{"nope.nothing", "1"},
	}
	for _, tt := range tests {
		cfg := config.Default()
		if err := setConfigValue(cfg, tt.key, tt.value); err == nil {
			t.Errorf("setConfigValue(%q, %q) expected error", tt.key, tt.value)
		}
	}
}

func TestGetConfigValue_MasksAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Anthropic.APIKey = "sk-ant-REDACTED"
	got, err := getConfigValue(cfg, "anthropic.api_key")
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-ant-...mnop" {
		t.Errorf("masked key = %q", got)
	}
}

func TestConfigKeysAllReadable(t *testing.T) {
	cfg := config.Default()
	for _, key := range configKeys {
		if _, err := getConfigValue(cfg, key); err != nil {
			t.Errorf("key %q not readable: %v", key, err)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{2 * time.Hour, "2h"},
		{2*time.Hour + 15*time.Minute, "2h15m"},
		{50 * time.Hour, "2d"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
