// Package config handles configuration loading for TaskMind.
// It supports XDG config paths, project-level overrides, and environment
// variables. Every engine tunable lives here: the scoring formula constants,
// chain-marker thresholds, and retry counts are configuration, not fixed law.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for TaskMind.
type Config struct {
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	History    HistoryConfig    `mapstructure:"history"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
}

// ClassifierConfig holds request-classification tunables.
type ClassifierConfig struct {
	// Threshold is the minimum normalized score for a capability to qualify.
	Threshold float64 `mapstructure:"threshold"`
	// Epsilon is the score difference treated as a tie.
	Epsilon float64 `mapstructure:"epsilon"`
	// HintBoost is added for capabilities accepting an attached artifact's kind.
	HintBoost float64 `mapstructure:"hint_boost"`
}

// ChainConfig holds pipeline construction tunables.
type ChainConfig struct {
	// MaxSteps bounds pipeline length.
	MaxSteps int `mapstructure:"max_steps"`
}

// ExecutorConfig holds execution tunables.
type ExecutorConfig struct {
	// Workers is the pipeline worker pool size.
	Workers int `mapstructure:"workers"`
	// QueueDepth bounds the FIFO admission queue.
	QueueDepth int `mapstructure:"queue_depth"`
	// StepTimeout is the default per-step timeout.
	StepTimeout time.Duration `mapstructure:"step_timeout"`
	// RetryAttempts is the total invocations per step, including the first.
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryBaseDelay is the delay before the first retry.
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	// RetryMultiplier grows the delay per retry.
	RetryMultiplier float64 `mapstructure:"retry_multiplier"`
	// RetryMaxDelay caps the backoff delay.
	RetryMaxDelay time.Duration `mapstructure:"retry_max_delay"`
}

// ProgressConfig holds progress reporting tunables.
type ProgressConfig struct {
	// Interval throttles snapshot emission per pipeline.
	Interval time.Duration `mapstructure:"interval"`
}

// RegistryConfig points at the capability registry file.
type RegistryConfig struct {
	// Path is the capability YAML file. Empty means built-in defaults.
	Path string `mapstructure:"path"`
	// Watch enables the restart-to-apply change notice.
	Watch bool `mapstructure:"watch"`
}

// HistoryConfig holds pipeline history settings.
type HistoryConfig struct {
	// Path is the SQLite database file. Empty means the XDG data default.
	Path string `mapstructure:"path"`
}

// AnthropicConfig holds settings for the optional LLM request analyzer.
type AnthropicConfig struct {
	// APIKey enables the analyzer when set.
	APIKey string `mapstructure:"api_key"`
	// Model is the Claude model name, empty for the SDK default.
	Model string `mapstructure:"model"`
	// UseBedrock routes calls through AWS Bedrock instead of the direct API.
	UseBedrock bool `mapstructure:"use_bedrock"`
	// AWSRegion is the Bedrock region.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is an optional AWS profile name.
	AWSProfile string `mapstructure:"aws_profile"`
}

// Load loads configuration from XDG paths, project overrides, and environment
// variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.taskmind.yaml in current directory or a parent)
// 3. User config (~/.config/taskmind/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// UserConfigPath returns the path to the user config file.
func UserConfigPath() string {
	return filepath.Join(userConfigDir(), "config.yaml")
}

// ProjectConfigPath returns the project config file path if one exists.
func ProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("classifier.threshold", 0.15)
	v.SetDefault("classifier.epsilon", 1e-6)
	v.SetDefault("classifier.hint_boost", 0.05)

	v.SetDefault("chain.max_steps", 4)

	v.SetDefault("executor.workers", 2)
	v.SetDefault("executor.queue_depth", 64)
	v.SetDefault("executor.step_timeout", "10m")
	v.SetDefault("executor.retry_attempts", 3)
	v.SetDefault("executor.retry_base_delay", "2s")
	v.SetDefault("executor.retry_multiplier", 2.0)
	v.SetDefault("executor.retry_max_delay", "30s")

	v.SetDefault("progress.interval", "100ms")

	v.SetDefault("registry.path", "")
	v.SetDefault("registry.watch", true)

	v.SetDefault("history.path", "")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Classifier: ClassifierConfig{
			Threshold: 0.15,
			Epsilon:   1e-6,
			HintBoost: 0.05,
		},
		Chain: ChainConfig{MaxSteps: 4},
		Executor: ExecutorConfig{
			Workers:         2,
			QueueDepth:      64,
			StepTimeout:     10 * time.Minute,
			RetryAttempts:   3,
			RetryBaseDelay:  2 * time.Second,
			RetryMultiplier: 2,
			RetryMaxDelay:   30 * time.Second,
		},
		Progress: ProgressConfig{Interval: 100 * time.Millisecond},
		Registry: RegistryConfig{Watch: true},
	}
}

// userConfigDir returns the XDG config directory for TaskMind.
func userConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "taskmind")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "taskmind")
	}
	return filepath.Join(home, ".config", "taskmind")
}

// findProjectConfig searches for .taskmind.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".taskmind.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
