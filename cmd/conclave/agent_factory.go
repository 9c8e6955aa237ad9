package main

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/conclave/internal/agent"
	"github.com/ShayCichocki/conclave/internal/api"
	"github.com/ShayCichocki/conclave/internal/config"
	"github.com/ShayCichocki/conclave/internal/orchestrator"
	"github.com/ShayCichocki/conclave/internal/workflow"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// completerFactory builds the API client shared by every claude agent.
// Tests replace it to avoid network access.
var completerFactory = func(cfg *config.Config) (api.Completer, error) {
	key, source, err := cfg.ResolveAPIKey()
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(api.ClientConfig{
		Model:         anthropic.Model(cfg.Anthropic.Model),
		APIKey:        key,
		UseAWSBedrock: source == config.KeySourceBedrock || cfg.Anthropic.UseBedrock,
		AWSRegion:     cfg.Anthropic.AWSRegion,
		AWSProfile:    cfg.Anthropic.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// loadRoster reads the roster file, or the default roster when path is empty.
func loadRoster(path string) ([]models.AgentSpec, error) {
	if path == "" {
		return workflow.DefaultRoster(), nil
	}
	return workflow.LoadRoster(path)
}

// buildRegistry turns roster entries into registered agents. The API client
// is only created when at least one claude agent is present.
func buildRegistry(specs []models.AgentSpec, cfg *config.Config) (*orchestrator.AgentRegistry, error) {
	registry := orchestrator.NewAgentRegistry()
	var completer api.Completer

	for _, spec := range specs {
		var inv agent.Invoker
		switch spec.Kind {
		case workflow.KindClaude:
			if completer == nil {
				c, err := completerFactory(cfg)
				if err != nil {
					return nil, fmt.Errorf("agent %s: %w", spec.ID, err)
				}
				completer = c
			}
			inv = api.NewClaudeInvoker(completer, spec)
		case workflow.KindEcho, "":
			inv = agent.NewStaticInvoker(spec)
		default:
			return nil, fmt.Errorf("agent %s: unknown kind %q", spec.ID, spec.Kind)
		}

		if err := registry.Register(agent.New(spec.ID, spec.Capabilities, spec.MaxConcurrent, inv)); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
