package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskmind/taskmind/internal/classify"
	"github.com/taskmind/taskmind/internal/config"
	"github.com/taskmind/taskmind/internal/gateway"
	"github.com/taskmind/taskmind/internal/transport"
	"github.com/taskmind/taskmind/internal/tui"
	"github.com/taskmind/taskmind/pkg/models"
)

var (
	runSession  string
	runHeadless bool
	runFile     string
	runFileKind string
)

var runCmd = &cobra.Command{
	Use:   "run <request>",
	Short: "Classify a request and execute the resulting pipeline",
	Long: `Run a free-form request through classification and execution.

The request text is scored against the capability registry. A single match
becomes a one-step pipeline; a chained request ("download this and then
transcribe it") becomes a multi-step pipeline ordered the way the request
reads. Steps run one at a time, each feeding its result to the next.

Attach an input file with --file; its kind (see --file-kind) nudges
classification toward capabilities that accept it.

Examples:
  taskmind run "download https://example.com/talk.mp4"
  taskmind run "transcribe this and save it to drive" --file talk.mp4 --file-kind video_file
  taskmind run "scrape https://example.com/article and make a pdf" --headless`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRequest,
}

func init() {
	runCmd.Flags().StringVar(&runSession, "session", "", "Session id (defaults to a per-user id)")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Plain console output instead of the TUI")
	runCmd.Flags().StringVar(&runFile, "file", "", "Input file to attach to the request")
	runCmd.Flags().StringVar(&runFileKind, "file-kind", string(models.KindDocument), "Kind of the attached file")
}

func runRequest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	trans := transport.NewConsole()
	eng, err := newEngine(cfg, trans)
	if err != nil {
		return err
	}
	defer eng.Close()

	eng.gateway.SurfaceAbandoned(eng.db)

	artifact, err := attachedArtifact()
	if err != nil {
		return err
	}

	session := runSession
	if session == "" {
		session = defaultSession()
	}
	req := gateway.NewRequest(session, strings.Join(args, " "), artifact)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run, err := eng.gateway.Handle(ctx, req)
	if err != nil {
		if errors.Is(err, classify.ErrNoConfidentMatch) {
			// The clarification prompt already went to the transport.
			return nil
		}
		return err
	}

	// Ctrl-C cancels the pipeline at the next step boundary.
	go func() {
		<-ctx.Done()
		run.Cancel()
	}()

	if runHeadless {
		eng.gateway.Forward(run)
	} else {
		if _, err := tui.Watch(run); err != nil {
			return err
		}
		trans.Result(run.Pipeline)
	}

	if run.Pipeline.Status != models.PipelineSucceeded {
		return fmt.Errorf("pipeline %s %s", run.Pipeline.ID, run.Pipeline.Status)
	}
	return nil
}

// attachedArtifact builds the optional input artifact from flags.
func attachedArtifact() (*models.Artifact, error) {
	if runFile == "" {
		return nil, nil
	}
	kind := models.ArtifactKind(runFileKind)
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown file kind %q", runFileKind)
	}
	abs, err := filepath.Abs(runFile)
	if err != nil {
		return nil, fmt.Errorf("resolve file path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("attach file: %w", err)
	}
	return &models.Artifact{
		Kind:     kind,
		Location: abs,
		Size:     info.Size(),
	}, nil
}

// defaultSession keys sessions per local user so repeated CLI invocations
// share the one-active-pipeline rule.
func defaultSession() string {
	if u := os.Getenv("USER"); u != "" {
		return "cli-" + u
	}
	return "cli"
}
