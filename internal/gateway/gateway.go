// Package gateway ties the engine together: it takes an inbound request
// through classification and chain building, admits the pipeline to the
// executor pool, and forwards progress and results to the transport.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/taskmind/taskmind/internal/analyze"
	"github.com/taskmind/taskmind/internal/chain"
	"github.com/taskmind/taskmind/internal/classify"
	"github.com/taskmind/taskmind/internal/executor"
	"github.com/taskmind/taskmind/internal/registry"
	"github.com/taskmind/taskmind/internal/state"
	"github.com/taskmind/taskmind/internal/transport"
	"github.com/taskmind/taskmind/pkg/models"
)

// Gateway coordinates one engine instance.
type Gateway struct {
	reg        *registry.Registry
	classifier *classify.Classifier
	builder    *chain.Builder
	pool       *executor.Pool
	transport  transport.Transport

	// analyzer is optional; nil disables LLM-assisted analysis.
	analyzer *analyze.Analyzer
}

// Config assembles a Gateway.
type Config struct {
	Registry   *registry.Registry
	Classifier *classify.Classifier
	Builder    *chain.Builder
	Pool       *executor.Pool
	Transport  transport.Transport
	Analyzer   *analyze.Analyzer
}

// New creates a Gateway.
func New(cfg Config) *Gateway {
	return &Gateway{
		reg:        cfg.Registry,
		classifier: cfg.Classifier,
		builder:    cfg.Builder,
		pool:       cfg.Pool,
		transport:  cfg.Transport,
		analyzer:   cfg.Analyzer,
	}
}

// NewRequest wraps inbound text in a Request for the given session.
func NewRequest(sessionID, text string, artifact *models.Artifact) *models.Request {
	return &models.Request{
		ID:         uuid.New().String()[:8],
		SessionID:  sessionID,
		Text:       text,
		Artifact:   artifact,
		ReceivedAt: time.Now(),
	}
}

// Handle runs a request through classify -> build -> submit. On a confident
// classification it confirms the pipeline and returns the admitted run; the
// caller chooses how to watch it (Forward or a TUI). Classification and
// build errors are terminal before any collaborator is touched and are
// never retried.
func (g *Gateway) Handle(ctx context.Context, req *models.Request) (*executor.Run, error) {
	var hint models.ArtifactKind
	if req.Artifact != nil {
		hint = req.Artifact.Kind
	}

	result, err := g.classifier.Classify(req.Text, hint)
	if err != nil {
		if errors.Is(err, classify.ErrNoConfidentMatch) {
			g.clarify(ctx, req)
		}
		return nil, err
	}

	pipeline, err := g.builder.Build(result, req)
	if err != nil {
		g.transport.Notice(buildGuidance(err))
		return nil, err
	}

	run, err := g.pool.Submit(pipeline)
	if err != nil {
		if errors.Is(err, executor.ErrBusySession) {
			g.transport.Notice(fmt.Sprintf(
				"Session %s already has a pipeline running. Cancel it or wait for it to finish.", req.SessionID))
		}
		return nil, err
	}

	g.transport.Confirm(pipeline)
	return run, nil
}

// Cancel requests cancellation of the session's active pipeline.
func (g *Gateway) Cancel(sessionID string) bool {
	return g.pool.Cancel(sessionID)
}

// SurfaceAbandoned reports pipelines a previous process left in flight.
// Best-effort: a history error only logs.
func (g *Gateway) SurfaceAbandoned(db *state.DB) {
	if db == nil {
		return
	}
	abandoned, err := db.MarkAbandoned()
	if err != nil {
		log.Printf("[gateway] check abandoned pipelines: %v", err)
		return
	}
	for _, e := range abandoned {
		g.transport.Notice(fmt.Sprintf(
			"Pipeline %s (%q) was interrupted by a restart and has been abandoned.", e.ID, e.RequestText))
	}
}

// Forward streams snapshots to the transport until the run finishes, then
// delivers the result. It blocks; callers that render progress themselves
// (the TUI) consume run.Snapshots directly instead. The snapshot channel's
// drop-oldest behavior means a slow transport only sees fewer snapshots,
// never a stale backlog.
func (g *Gateway) Forward(run *executor.Run) {
	for s := range run.Snapshots() {
		g.transport.Progress(s)
	}
	<-run.Done()
	g.transport.Result(run.Pipeline)
}

// clarify sends a clarification prompt, enriched by the analyzer when
// available. Analyzer failures fall back to the capability listing.
func (g *Gateway) clarify(ctx context.Context, req *models.Request) {
	message := "I couldn't match that to a capability. I can: " + capabilitySummary(g.reg)
	questions := []string{"What are you trying to do, in a few words?"}

	if g.analyzer != nil {
		if a, err := g.analyzer.Analyze(ctx, req.Text, g.reg.Profiles()); err == nil {
			if a.Summary != "" {
				message = a.Summary
			}
			if len(a.Questions) > 0 {
				questions = a.Questions
			}
		} else {
			log.Printf("[gateway] analyzer unavailable, using keyword guidance: %v", err)
		}
	}

	g.transport.Clarify(req.SessionID, message, questions)
}

// capabilitySummary lists display names in registry order.
func capabilitySummary(reg *registry.Registry) string {
	out := ""
	for i, p := range reg.Profiles() {
		if i > 0 {
			out += ", "
		}
		out += p.DisplayName
	}
	return out
}

// buildGuidance turns chain-builder errors into user-facing advice.
func buildGuidance(err error) string {
	var incompat *chain.IncompatibleError
	switch {
	case errors.As(err, &incompat):
		return fmt.Sprintf(
			"Those steps don't fit together: %v. Try splitting the request into separate messages.", incompat)
	case errors.Is(err, chain.ErrTooLong):
		return "That request needs too many steps for one pipeline. Split it into smaller requests."
	default:
		return fmt.Sprintf("Couldn't build a pipeline for that request: %v", err)
	}
}
