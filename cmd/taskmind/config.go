package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskmind/taskmind/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Display the resolved configuration after merging defaults, the user
config file, any project .taskmind.yaml, and environment variables.

Configuration is stored at ` + "~/.config/taskmind/config.yaml" + `
Project-specific overrides can be placed in .taskmind.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		displayConfig(cfg)
		return nil
	},
}

func displayConfig(cfg *config.Config) {
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("classifier.threshold: %g\n", cfg.Classifier.Threshold)
	fmt.Printf("classifier.epsilon: %g\n", cfg.Classifier.Epsilon)
	fmt.Printf("classifier.hint_boost: %g\n", cfg.Classifier.HintBoost)
	fmt.Printf("chain.max_steps: %d\n", cfg.Chain.MaxSteps)
	fmt.Printf("executor.workers: %d\n", cfg.Executor.Workers)
	fmt.Printf("executor.queue_depth: %d\n", cfg.Executor.QueueDepth)
	fmt.Printf("executor.step_timeout: %s\n", cfg.Executor.StepTimeout)
	fmt.Printf("executor.retry_attempts: %d\n", cfg.Executor.RetryAttempts)
	fmt.Printf("executor.retry_base_delay: %s\n", cfg.Executor.RetryBaseDelay)
	fmt.Printf("executor.retry_multiplier: %g\n", cfg.Executor.RetryMultiplier)
	fmt.Printf("executor.retry_max_delay: %s\n", cfg.Executor.RetryMaxDelay)
	fmt.Printf("progress.interval: %s\n", cfg.Progress.Interval)
	fmt.Printf("registry.path: %s\n", orDefault(cfg.Registry.Path, "(built-in)"))
	fmt.Printf("registry.watch: %t\n", cfg.Registry.Watch)
	fmt.Printf("history.path: %s\n", statePath(cfg))
	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("anthropic.model: %s\n", orDefault(cfg.Anthropic.Model, "(sdk default)"))
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("\nuser config:    %s\n", config.UserConfigPath())
	fmt.Printf("project config: %s\n", orDefault(config.ProjectConfigPath(), "(none found)"))
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
