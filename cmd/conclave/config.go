package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/conclave/internal/config"
)

var configProject bool

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify conclave configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value and saves it.

Configuration is stored at ~/.config/conclave/config.yaml.
Project-specific overrides can be placed in .conclave.yaml (use --project).`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		out := cmd.OutOrStdout()
		switch len(args) {
		case 0:
			displayAllConfig(out, cfg)
			return nil
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		default:
			return setConfigKey(cfg, args[0], args[1])
		}
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configTarget()
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err == nil {
			printStatus("⚠", path+" already exists", color.FgYellow)
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := config.SaveTo(path, config.Default()); err != nil {
			return err
		}
		printStatus("✓", "Created "+path, color.FgGreen)
		return nil
	},
}

func init() {
	configCmd.PersistentFlags().BoolVar(&configProject, "project", false, "Write the project .conclave.yaml instead of the user config")
	configCmd.AddCommand(configInitCmd)
}

// configTarget is the file that set and init write.
func configTarget() (string, error) {
	if !configProject {
		return config.GetUserConfigPath(), nil
	}
	root, err := projectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, config.ProjectConfigName), nil
}

// configKeys lists the supported keys in display order.
var configKeys = []string{
	"run.max_parallel_agents",
	"run.max_concurrent_sessions",
	"run.fail_fast",
	"run.global_timeout",
	"run.task_timeout",
	"run.poll_interval",
	"run.event_buffer",
	"run.priority",
	"retry.max_attempts",
	"retry.initial_backoff",
	"retry.max_backoff",
	"retry.multiplier",
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.use_bedrock",
	"anthropic.aws_region",
	"anthropic.aws_profile",
	"storage.db_path",
	"tui.refresh_rate",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	_, source, _ := cfg.ResolveAPIKey()
	fmt.Fprintf(w, "(api key source: %s)\n", source)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) error {
	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	path, err := configTarget()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := config.SaveTo(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	printStatus("✓", fmt.Sprintf("Set %s = %s", key, displayValue(key, value)), color.FgGreen)
	return nil
}

func displayValue(key, value string) string {
	if key == "anthropic.api_key" {
		return config.MaskAPIKey(value)
	}
	return value
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "run.max_parallel_agents":
		return strconv.Itoa(cfg.Run.MaxParallelAgents), nil
	case "run.max_concurrent_sessions":
		return strconv.Itoa(cfg.Run.MaxConcurrentSessions), nil
	case "run.fail_fast":
		return strconv.FormatBool(cfg.Run.FailFast), nil
	case "run.global_timeout":
		return cfg.Run.GlobalTimeout.String(), nil
	case "run.task_timeout":
		return cfg.Run.TaskTimeout.String(), nil
	case "run.poll_interval":
		return cfg.Run.PollInterval.String(), nil
	case "run.event_buffer":
		return strconv.Itoa(cfg.Run.EventBuffer), nil
	case "run.priority":
		return cfg.Run.Priority, nil
	case "retry.max_attempts":
		return strconv.Itoa(cfg.Retry.MaxAttempts), nil
	case "retry.initial_backoff":
		return cfg.Retry.InitialBackoff.String(), nil
	case "retry.max_backoff":
		return cfg.Retry.MaxBackoff.String(), nil
	case "retry.multiplier":
		return strconv.FormatFloat(cfg.Retry.Multiplier, 'g', -1, 64), nil
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "anthropic.aws_region":
		return cfg.Anthropic.AWSRegion, nil
	case "anthropic.aws_profile":
		return cfg.Anthropic.AWSProfile, nil
	case "storage.db_path":
		return cfg.Storage.DBPath, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	key = strings.ToLower(key)
	switch key {
	case "run.max_parallel_agents":
		return setInt(&cfg.Run.MaxParallelAgents, key, value)
	case "run.max_concurrent_sessions":
		return setInt(&cfg.Run.MaxConcurrentSessions, key, value)
	case "run.fail_fast":
		return setBool(&cfg.Run.FailFast, key, value)
	case "run.global_timeout":
		return setDuration(&cfg.Run.GlobalTimeout, key, value)
	case "run.task_timeout":
		return setDuration(&cfg.Run.TaskTimeout, key, value)
	case "run.poll_interval":
		return setDuration(&cfg.Run.PollInterval, key, value)
	case "run.event_buffer":
		return setInt(&cfg.Run.EventBuffer, key, value)
	case "run.priority":
		cfg.Run.Priority = value
	case "retry.max_attempts":
		return setInt(&cfg.Retry.MaxAttempts, key, value)
	case "retry.initial_backoff":
		return setDuration(&cfg.Retry.InitialBackoff, key, value)
	case "retry.max_backoff":
		return setDuration(&cfg.Retry.MaxBackoff, key, value)
	case "retry.multiplier":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %w", key, err)
		}
		cfg.Retry.Multiplier = f
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_bedrock":
		return setBool(&cfg.Anthropic.UseBedrock, key, value)
	case "anthropic.aws_region":
		cfg.Anthropic.AWSRegion = value
	case "anthropic.aws_profile":
		cfg.Anthropic.AWSProfile = value
	case "storage.db_path":
		cfg.Storage.DBPath = value
	case "tui.refresh_rate":
		return setDuration(&cfg.TUI.RefreshRate, key, value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean for %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key, value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	*dst = d
	return nil
}
