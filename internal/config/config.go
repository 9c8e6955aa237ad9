// Package config handles configuration loading for conclave.
// It layers built-in defaults, the XDG user config, a project-level
// .conclave.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/conclave/internal/orchestrator"
	"github.com/ShayCichocki/conclave/internal/orchestrator/policy"
	"github.com/ShayCichocki/conclave/pkg/models"
)

// ProjectConfigName is the project-level override file searched upward from the working directory.
const ProjectConfigName = ".conclave.yaml"

// EnvPrefix prefixes environment overrides, e.g. CONCLAVE_RUN_MAX_PARALLEL_AGENTS.
const EnvPrefix = "CONCLAVE"

// Config holds all configuration for conclave.
type Config struct {
	Run       RunConfig       `mapstructure:"run"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Storage   StorageConfig   `mapstructure:"storage"`
	TUI       TUIConfig       `mapstructure:"tui"`
}

// RunConfig holds session defaults.
type RunConfig struct {
	MaxParallelAgents     int           `mapstructure:"max_parallel_agents"`
	MaxConcurrentSessions int           `mapstructure:"max_concurrent_sessions"`
	FailFast              bool          `mapstructure:"fail_fast"`
	GlobalTimeout         time.Duration `mapstructure:"global_timeout"`
	TaskTimeout           time.Duration `mapstructure:"task_timeout"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	EventBuffer           int           `mapstructure:"event_buffer"`
	Priority              string        `mapstructure:"priority"`
}

// RetryConfig holds the default retry schedule.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	Multiplier     float64       `mapstructure:"multiplier"`
}

// AnthropicConfig holds Anthropic API settings for claude agents.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// StorageConfig locates the report archive.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// TUIConfig holds monitor display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from the user config directory, the nearest
// project config above the working directory, and the environment.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, CONCLAVE_*)
// 2. Project config (.conclave.yaml in current directory or parent)
// 3. User config (~/.config/conclave/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return LoadFrom(getUserConfigDir(), cwd)
}

// LoadFrom is Load with explicit search roots.
func LoadFrom(userConfigDir, startDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(startDir); projectConfig != "" {
		pv := viper.New()
		pv.SetConfigFile(projectConfig)
		if err := pv.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(pv.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return decode(v)
}

// LoadFromPath loads configuration from a single file on top of the defaults.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.Storage.DBPath = os.ExpandEnv(cfg.Storage.DBPath)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that cannot be clamped to something sensible.
func (c *Config) Validate() error {
	if c.Run.MaxParallelAgents < 0 {
		return fmt.Errorf("run.max_parallel_agents must not be negative: %d", c.Run.MaxParallelAgents)
	}
	if c.Run.GlobalTimeout < 0 {
		return fmt.Errorf("run.global_timeout must not be negative: %v", c.Run.GlobalTimeout)
	}
	if c.Run.Priority != "" && !models.RunPriority(c.Run.Priority).Valid() {
		return fmt.Errorf("run.priority %q is not one of low, normal, high, critical", c.Run.Priority)
	}
	if c.Retry.Multiplier != 0 && c.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier must be at least 1: %v", c.Retry.Multiplier)
	}
	return nil
}

// Policy builds the orchestrator policy from the configured values.
func (c *Config) Policy() *policy.Config {
	p := policy.Default()
	if c.Run.PollInterval > 0 {
		p.Loop.PollInterval = c.Run.PollInterval
	}
	if c.Run.EventBuffer > 0 {
		p.Loop.EventBufferSize = c.Run.EventBuffer
	}
	if c.Run.MaxParallelAgents > 0 {
		p.Limits.MaxParallelAgents = c.Run.MaxParallelAgents
	}
	if c.Run.MaxConcurrentSessions > 0 {
		p.Limits.MaxConcurrentSessions = c.Run.MaxConcurrentSessions
	}
	if c.Run.TaskTimeout > 0 {
		p.Limits.TaskTimeout = c.Run.TaskTimeout
	}
	p.Retry = policy.RetryPolicy{
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialBackoff: c.Retry.InitialBackoff,
		MaxBackoff:     c.Retry.MaxBackoff,
		Multiplier:     c.Retry.Multiplier,
	}
	_ = p.Validate()
	return p
}

// ToRunConfig converts the configuration into session settings.
// CLI flags are applied on top of the result by the caller.
func (c *Config) ToRunConfig() orchestrator.RunConfig {
	p := c.Policy()
	rc := orchestrator.DefaultRunConfig()
	rc.Policy = p
	rc.MaxParallelAgents = p.Limits.MaxParallelAgents
	rc.FailFast = c.Run.FailFast
	rc.GlobalTimeout = c.Run.GlobalTimeout
	rc.TaskTimeout = p.Limits.TaskTimeout
	rc.Retry = models.RetryPolicy{
		MaxAttempts:    p.Retry.MaxAttempts,
		InitialBackoff: p.Retry.InitialBackoff,
		MaxBackoff:     p.Retry.MaxBackoff,
		Multiplier:     p.Retry.Multiplier,
	}
	if c.Run.Priority != "" {
		rc.Priority = models.RunPriority(c.Run.Priority)
	}
	return rc
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	dir := getUserConfigDir()
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveTo(filepath.Join(dir, "config.yaml"), cfg)
}

// SaveTo writes cfg as YAML to path.
func SaveTo(path string, cfg *Config) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("run.max_parallel_agents", cfg.Run.MaxParallelAgents)
	v.Set("run.max_concurrent_sessions", cfg.Run.MaxConcurrentSessions)
	v.Set("run.fail_fast", cfg.Run.FailFast)
	v.Set("run.global_timeout", cfg.Run.GlobalTimeout.String())
	v.Set("run.task_timeout", cfg.Run.TaskTimeout.String())
	v.Set("run.poll_interval", cfg.Run.PollInterval.String())
	v.Set("run.event_buffer", cfg.Run.EventBuffer)
	v.Set("run.priority", cfg.Run.Priority)
	v.Set("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.Set("retry.initial_backoff", cfg.Retry.InitialBackoff.String())
	v.Set("retry.max_backoff", cfg.Retry.MaxBackoff.String())
	v.Set("retry.multiplier", cfg.Retry.Multiplier)
	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("storage.db_path", cfg.Storage.DBPath)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the nearest project config, or "".
func GetProjectConfigPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findProjectConfig(cwd)
}

func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("run.max_parallel_agents", d.Run.MaxParallelAgents)
	v.SetDefault("run.max_concurrent_sessions", d.Run.MaxConcurrentSessions)
	v.SetDefault("run.fail_fast", d.Run.FailFast)
	v.SetDefault("run.global_timeout", "0s")
	v.SetDefault("run.task_timeout", d.Run.TaskTimeout.String())
	v.SetDefault("run.poll_interval", d.Run.PollInterval.String())
	v.SetDefault("run.event_buffer", d.Run.EventBuffer)
	v.SetDefault("run.priority", d.Run.Priority)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_backoff", d.Retry.InitialBackoff.String())
	v.SetDefault("retry.max_backoff", d.Retry.MaxBackoff.String())
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("storage.db_path", d.Storage.DBPath)
	v.SetDefault("tui.refresh_rate", d.TUI.RefreshRate.String())
}

// getUserConfigDir returns the XDG config directory for conclave.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "conclave")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "conclave")
	}
	return filepath.Join(home, ".config", "conclave")
}

// findProjectConfig searches for .conclave.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Default returns a Config with default values.
func Default() *Config {
	p := policy.Default()
	return &Config{
		Run: RunConfig{
			MaxParallelAgents:     p.Limits.MaxParallelAgents,
			MaxConcurrentSessions: p.Limits.MaxConcurrentSessions,
			FailFast:              true,
			TaskTimeout:           p.Limits.TaskTimeout,
			PollInterval:          p.Loop.PollInterval,
			EventBuffer:           p.Loop.EventBufferSize,
			Priority:              string(models.PriorityNormal),
		},
		Retry: RetryConfig{
			MaxAttempts:    p.Retry.MaxAttempts,
			InitialBackoff: p.Retry.InitialBackoff,
			MaxBackoff:     p.Retry.MaxBackoff,
			Multiplier:     p.Retry.Multiplier,
		},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Storage: StorageConfig{
			DBPath: filepath.Join(".conclave", "conclave.db"),
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
