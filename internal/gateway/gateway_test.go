package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/taskmind/taskmind/internal/chain"
	"github.com/taskmind/taskmind/internal/classify"
	"github.com/taskmind/taskmind/internal/collab"
	"github.com/taskmind/taskmind/internal/executor"
	"github.com/taskmind/taskmind/internal/progress"
	"github.com/taskmind/taskmind/internal/registry"
	"github.com/taskmind/taskmind/internal/state"
	"github.com/taskmind/taskmind/pkg/models"
)

// fakeTransport records every outbound interaction.
type fakeTransport struct {
	mu        sync.Mutex
	clarified []string
	confirmed []*models.Pipeline
	snapshots []progress.Snapshot
	results   []*models.Pipeline
	notices   []string
	questions []string
}

func (f *fakeTransport) Clarify(sessionID, message string, questions []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clarified = append(f.clarified, message)
	f.questions = append(f.questions, questions...)
}

func (f *fakeTransport) Confirm(p *models.Pipeline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, p)
}

func (f *fakeTransport) Progress(s progress.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots = append(f.snapshots, s)
}

func (f *fakeTransport) Result(p *models.Pipeline) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, p)
}

func (f *fakeTransport) Notice(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, message)
}

// instantCollaborator succeeds immediately.
type instantCollaborator struct{}

func (instantCollaborator) Invoke(ctx context.Context, in collab.Input, sink collab.Sink) (*models.Artifact, error) {
	sink.Report(collab.Report{Percent: 100})
	return &models.Artifact{Kind: models.KindVideoFile, Location: "/out/v"}, nil
}

// gatedCollaborator blocks until released, keeping a pipeline in flight.
type gatedCollaborator struct {
	release chan struct{}
}

func (g *gatedCollaborator) Invoke(ctx context.Context, in collab.Input, sink collab.Sink) (*models.Artifact, error) {
	select {
	case <-g.release:
		return &models.Artifact{Kind: models.KindVideoFile, Location: "/out/v"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type staticResolver struct {
	c collab.Collaborator
}

func (r staticResolver) Resolve(id string) (collab.Collaborator, error) {
	return r.c, nil
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]registry.CapabilityProfile{
		{
			ID:             "video",
			DisplayName:    "Video Downloader",
			Keywords:       []registry.Keyword{{Phrase: "download", Weight: 1}},
			Produces:       models.KindVideoFile,
			CollaboratorID: "ytdlp",
		},
		{
			ID:             "transcribe",
			DisplayName:    "Audio Transcriber",
			Keywords:       []registry.Keyword{{Phrase: "transcribe", Weight: 1}},
			Accepts:        []models.ArtifactKind{models.KindVideoFile},
			Produces:       models.KindTranscript,
			CollaboratorID: "whisper",
		},
		{
			ID:             "scrape",
			DisplayName:    "Web Scraper",
			Keywords:       []registry.Keyword{{Phrase: "scrape", Weight: 1}},
			Produces:       models.KindScrapedDocument,
			CollaboratorID: "firecrawl",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func newTestGateway(t *testing.T) (*Gateway, *fakeTransport) {
	t.Helper()
	return newTestGatewayWith(t, instantCollaborator{})
}

func newTestGatewayWith(t *testing.T, c collab.Collaborator) (*Gateway, *fakeTransport) {
	t.Helper()
	reg := testRegistry(t)
	exec := executor.New(executor.Config{
		Registry:      reg,
		Collaborators: staticResolver{c: c},
		Retry:         executor.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 2},
	})
	pool := executor.NewPool(executor.PoolConfig{
		Workers:          2,
		QueueDepth:       8,
		Executor:         exec,
		Registry:         reg,
		ProgressInterval: time.Millisecond,
	})
	t.Cleanup(pool.Stop)

	trans := &fakeTransport{}
	g := New(Config{
		Registry:   reg,
		Classifier: classify.New(reg, classify.Config{}),
		Builder:    chain.New(reg, 0),
		Pool:       pool,
		Transport:  trans,
	})
	return g, trans
}

func TestHandleRunsPipeline(t *testing.T) {
	g, trans := newTestGateway(t)
	req := NewRequest("sess1", "download this video and transcribe it", nil)

	run, err := g.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	trans.mu.Lock()
	if len(trans.confirmed) != 1 {
		t.Errorf("Confirm called %d times, want 1", len(trans.confirmed))
	}
	trans.mu.Unlock()

	g.Forward(run)

	if run.Pipeline.Status != models.PipelineSucceeded {
		t.Errorf("pipeline status = %q, want succeeded", run.Pipeline.Status)
	}
	trans.mu.Lock()
	defer trans.mu.Unlock()
	if len(trans.results) != 1 {
		t.Fatalf("Result called %d times, want 1", len(trans.results))
	}
	if trans.results[0] != run.Pipeline {
		t.Error("Result delivered a different pipeline")
	}
	if len(trans.snapshots) == 0 {
		t.Error("no progress snapshots forwarded")
	}
}

func TestHandleClarifiesOnNoMatch(t *testing.T) {
	g, trans := newTestGateway(t)
	req := NewRequest("sess1", "what a lovely morning", nil)

	_, err := g.Handle(context.Background(), req)
	if !errors.Is(err, classify.ErrNoConfidentMatch) {
		t.Fatalf("Handle() error = %v, want ErrNoConfidentMatch", err)
	}

	trans.mu.Lock()
	defer trans.mu.Unlock()
	if len(trans.clarified) != 1 {
		t.Fatalf("Clarify called %d times, want 1", len(trans.clarified))
	}
	// Without an analyzer the prompt lists the capabilities.
	for _, name := range []string{"Video Downloader", "Audio Transcriber", "Web Scraper"} {
		if !strings.Contains(trans.clarified[0], name) {
			t.Errorf("clarification %q missing capability %q", trans.clarified[0], name)
		}
	}
	if len(trans.questions) == 0 {
		t.Error("clarification carried no questions")
	}
}

func TestHandleSurfacesIncompatibleChain(t *testing.T) {
	g, trans := newTestGateway(t)
	// scrape produces a scraped document, transcribe does not accept it.
	req := NewRequest("sess1", "scrape the page and transcribe it", nil)

	_, err := g.Handle(context.Background(), req)
	var incompat *chain.IncompatibleError
	if !errors.As(err, &incompat) {
		t.Fatalf("Handle() error = %v, want IncompatibleError", err)
	}

	trans.mu.Lock()
	defer trans.mu.Unlock()
	if len(trans.notices) != 1 {
		t.Fatalf("Notice called %d times, want 1", len(trans.notices))
	}
	if !strings.Contains(trans.notices[0], "don't fit together") {
		t.Errorf("notice = %q, want incompatibility guidance", trans.notices[0])
	}
}

func TestHandleRejectsBusySession(t *testing.T) {
	gate := &gatedCollaborator{release: make(chan struct{})}
	g, trans := newTestGatewayWith(t, gate)

	first, err := g.Handle(context.Background(), NewRequest("sess1", "download the video", nil))
	if err != nil {
		t.Fatalf("first Handle() error = %v", err)
	}

	_, err = g.Handle(context.Background(), NewRequest("sess1", "download the video", nil))
	if !errors.Is(err, executor.ErrBusySession) {
		t.Fatalf("second Handle() error = %v, want ErrBusySession", err)
	}

	trans.mu.Lock()
	busyNotices := len(trans.notices)
	trans.mu.Unlock()
	if busyNotices != 1 {
		t.Errorf("Notice called %d times, want 1", busyNotices)
	}

	close(gate.release)
	g.Forward(first)
	if first.Pipeline.Status != models.PipelineSucceeded {
		t.Errorf("first pipeline status = %q, want succeeded", first.Pipeline.Status)
	}
}

func TestSurfaceAbandoned(t *testing.T) {
	g, trans := newTestGateway(t)

	db, err := state.Open(filepath.Join(t.TempDir(), "taskmind.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatal(err)
	}

	stuck := &models.Pipeline{
		ID:        "stuck1",
		SessionID: "sess1",
		Request:   &models.Request{ID: "r1", SessionID: "sess1", Text: "download the video"},
		Steps:     []*models.PipelineStep{{CapabilityID: "video", DisplayName: "Video Downloader", Status: models.StepPending}},
		Status:    models.PipelinePending,
		CreatedAt: time.Now(),
	}
	if err := db.RecordStart(stuck); err != nil {
		t.Fatal(err)
	}

	g.SurfaceAbandoned(db)

	trans.mu.Lock()
	defer trans.mu.Unlock()
	if len(trans.notices) != 1 {
		t.Fatalf("Notice called %d times, want 1", len(trans.notices))
	}
	if !strings.Contains(trans.notices[0], "stuck1") {
		t.Errorf("notice = %q, want mention of pipeline stuck1", trans.notices[0])
	}
}

func TestSurfaceAbandonedNilDB(t *testing.T) {
	g, trans := newTestGateway(t)
	g.SurfaceAbandoned(nil)

	trans.mu.Lock()
	defer trans.mu.Unlock()
	if len(trans.notices) != 0 {
		t.Errorf("Notice called %d times for nil db, want 0", len(trans.notices))
	}
}

func TestBuildGuidance(t *testing.T) {
	tooLong := chain.ErrTooLong
	if got := buildGuidance(tooLong); !strings.Contains(got, "too many steps") {
		t.Errorf("buildGuidance(ErrTooLong) = %q", got)
	}
	incompat := &chain.IncompatibleError{StepIndex: 1, Produces: models.KindScrapedDocument, CapabilityID: "transcribe"}
	if got := buildGuidance(incompat); !strings.Contains(got, "don't fit together") {
		t.Errorf("buildGuidance(incompatible) = %q", got)
	}
	if got := buildGuidance(errors.New("odd")); !strings.Contains(got, "odd") {
		t.Errorf("buildGuidance(other) = %q", got)
	}
}
