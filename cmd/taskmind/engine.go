package main

import (
	"fmt"
	"log"

	"github.com/taskmind/taskmind/internal/analyze"
	"github.com/taskmind/taskmind/internal/chain"
	"github.com/taskmind/taskmind/internal/classify"
	"github.com/taskmind/taskmind/internal/collab"
	"github.com/taskmind/taskmind/internal/config"
	"github.com/taskmind/taskmind/internal/executor"
	"github.com/taskmind/taskmind/internal/gateway"
	"github.com/taskmind/taskmind/internal/registry"
	"github.com/taskmind/taskmind/internal/state"
	"github.com/taskmind/taskmind/internal/transport"
)

// engine bundles the assembled components a command needs.
type engine struct {
	cfg      *config.Config
	registry *registry.Registry
	gateway  *gateway.Gateway
	pool     *executor.Pool
	db       *state.DB
	watcher  *registry.Watcher
}

// scriptCommands maps collaborator ids to the external tools that actually
// do the work. Override per deployment via wrapper scripts on PATH.
var scriptCommands = map[string][]string{
	"ytdlp":     {"taskmind-ytdlp"},
	"whisper":   {"taskmind-whisper"},
	"ffmpeg":    {"taskmind-ffmpeg"},
	"firecrawl": {"taskmind-firecrawl"},
	"gdrive":    {"taskmind-gdrive"},
	"pdf":       {"taskmind-pdf"},
}

// newEngine assembles the full pipeline engine from configuration.
func newEngine(cfg *config.Config, trans transport.Transport) (*engine, error) {
	reg, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("load capability registry: %w", err)
	}

	classifier := classify.New(reg, classify.Config{
		Threshold: cfg.Classifier.Threshold,
		Epsilon:   cfg.Classifier.Epsilon,
		HintBoost: cfg.Classifier.HintBoost,
	})
	builder := chain.New(reg, cfg.Chain.MaxSteps)

	dir := collab.NewDirectory()
	for _, p := range reg.Profiles() {
		cmd, ok := scriptCommands[p.CollaboratorID]
		if !ok {
			// Profiles from a custom registry file name their own command.
			cmd = []string{"taskmind-" + p.CollaboratorID}
		}
		dir.Register(p.CollaboratorID, &collab.Script{
			Name:     p.CollaboratorID,
			Command:  cmd,
			Produces: p.Produces,
		})
	}

	db, err := state.Open(statePath(cfg))
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	exec := executor.New(executor.Config{
		Registry:      reg,
		Collaborators: dir,
		Retry: executor.RetryPolicy{
			MaxAttempts: cfg.Executor.RetryAttempts,
			BaseDelay:   cfg.Executor.RetryBaseDelay,
			Multiplier:  cfg.Executor.RetryMultiplier,
			MaxDelay:    cfg.Executor.RetryMaxDelay,
		},
		StepTimeout: cfg.Executor.StepTimeout,
	})
	pool := executor.NewPool(executor.PoolConfig{
		Workers:          cfg.Executor.Workers,
		QueueDepth:       cfg.Executor.QueueDepth,
		Executor:         exec,
		Registry:         reg,
		ProgressInterval: cfg.Progress.Interval,
		History:          db,
	})

	var analyzer *analyze.Analyzer
	if cfg.Anthropic.APIKey != "" || cfg.Anthropic.UseBedrock {
		analyzer, err = analyze.New(analyze.Config{
			APIKey:     cfg.Anthropic.APIKey,
			Model:      cfg.Anthropic.Model,
			UseBedrock: cfg.Anthropic.UseBedrock,
			AWSRegion:  cfg.Anthropic.AWSRegion,
			AWSProfile: cfg.Anthropic.AWSProfile,
		})
		if err != nil {
			log.Printf("[engine] analyzer disabled: %v", err)
			analyzer = nil
		}
	}

	var watcher *registry.Watcher
	if cfg.Registry.Watch && cfg.Registry.Path != "" {
		watcher, err = registry.NewWatcher(cfg.Registry.Path, nil)
		if err != nil {
			log.Printf("[engine] registry watch disabled: %v", err)
		}
	}

	gw := gateway.New(gateway.Config{
		Registry:   reg,
		Classifier: classifier,
		Builder:    builder,
		Pool:       pool,
		Transport:  trans,
		Analyzer:   analyzer,
	})

	return &engine{
		cfg:      cfg,
		registry: reg,
		gateway:  gw,
		pool:     pool,
		db:       db,
		watcher:  watcher,
	}, nil
}

// Close stops workers and releases the database and watcher.
func (e *engine) Close() {
	e.pool.Stop()
	if e.watcher != nil {
		e.watcher.Close()
	}
	if e.db != nil {
		e.db.Close()
	}
}

func statePath(cfg *config.Config) string {
	if cfg.History.Path != "" {
		return cfg.History.Path
	}
	return state.DefaultPath()
}
