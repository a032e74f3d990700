package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/taskmind/taskmind/internal/collab"
	"github.com/taskmind/taskmind/internal/progress"
	"github.com/taskmind/taskmind/internal/registry"
	"github.com/taskmind/taskmind/pkg/models"
)

// fakeCollaborator pops one scripted outcome per invocation. A nil error
// yields an artifact at the scripted location.
type fakeCollaborator struct {
	script  []error
	invoked int
	// block, when set, holds the invocation until ctx is done.
	block bool
}

func (f *fakeCollaborator) Invoke(ctx context.Context, in collab.Input, sink collab.Sink) (*models.Artifact, error) {
	f.invoked++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	var err error
	if len(f.script) > 0 {
		err, f.script = f.script[0], f.script[1:]
	}
	if err != nil {
		return nil, err
	}
	sink.Report(collab.Report{Percent: 100})
	return &models.Artifact{
		Kind:     models.KindTranscript,
		Location: fmt.Sprintf("/out/%d", f.invoked),
	}, nil
}

// fakeResolver maps capability collaborator ids to fakes.
type fakeResolver map[string]collab.Collaborator

func (r fakeResolver) Resolve(id string) (collab.Collaborator, error) {
	c, ok := r[id]
	if !ok {
		return nil, fmt.Errorf("no collaborator %q", id)
	}
	return c, nil
}

func twoStepRegistry(t *testing.T) *registry.Registry {
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
	})
	if err != nil {
		t.Fatal(err)
	}
	return reg
}

func pipelineFor(capabilities ...string) *models.Pipeline {
	steps := make([]*models.PipelineStep, len(capabilities))
	for i, id := range capabilities {
		steps[i] = &models.PipelineStep{
			CapabilityID: id,
			DisplayName:  id,
			Status:       models.StepPending,
		}
	}
	return &models.Pipeline{
		ID:        "pipe1",
		SessionID: "sess1",
		Request:   &models.Request{ID: "req1", SessionID: "sess1", Text: "download and transcribe"},
		Steps:     steps,
		Status:    models.PipelinePending,
	}
}

func newTestExecutor(t *testing.T, reg *registry.Registry, collabs fakeResolver) *Executor {
	t.Helper()
	e := New(Config{
		Registry:      reg,
		Collaborators: collabs,
		Retry:         RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: time.Second},
	})
	e.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return e
}

func newAggregator(p *models.Pipeline) *progress.Aggregator {
	return progress.New(p, nil, time.Millisecond)
}

func TestExecuteSuccess(t *testing.T) {
	reg := twoStepRegistry(t)
	dl := &fakeCollaborator{}
	tr := &fakeCollaborator{}
	e := newTestExecutor(t, reg, fakeResolver{"ytdlp": dl, "whisper": tr})
	p := pipelineFor("video", "transcribe")

	if err := e.Execute(context.Background(), p, newAggregator(p)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if p.Status != models.PipelineSucceeded {
		t.Errorf("pipeline status = %q, want succeeded", p.Status)
	}
	for i, step := range p.Steps {
		if step.Status != models.StepSucceeded {
			t.Errorf("step %d status = %q, want succeeded", i, step.Status)
		}
		if step.Artifact == nil {
			t.Errorf("step %d has no artifact", i)
		}
		if step.Attempts != 1 {
			t.Errorf("step %d attempts = %d, want 1", i, step.Attempts)
		}
	}
	if p.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestExecuteRetriesTransientFailures(t *testing.T) {
	reg := twoStepRegistry(t)
	dl := &fakeCollaborator{script: []error{
		collab.NewError(collab.KindNetwork, "ytdlp", errors.New("reset")),
		collab.NewError(collab.KindNetwork, "ytdlp", errors.New("reset")),
		nil,
	}}
	e := newTestExecutor(t, reg, fakeResolver{"ytdlp": dl})
	p := pipelineFor("video")

	if err := e.Execute(context.Background(), p, newAggregator(p)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if p.Status != models.PipelineSucceeded {
		t.Errorf("pipeline status = %q, want succeeded", p.Status)
	}
	if dl.invoked != 3 {
		t.Errorf("collaborator invoked %d times, want 3", dl.invoked)
	}
	if got := p.Steps[0].Retries(); got != 2 {
		t.Errorf("step retries = %d, want 2", got)
	}
}

func TestExecuteExhaustsRetries(t *testing.T) {
	reg := twoStepRegistry(t)
	netErr := collab.NewError(collab.KindRateLimited, "ytdlp", errors.New("429"))
	dl := &fakeCollaborator{script: []error{netErr, netErr, netErr, netErr}}
	e := newTestExecutor(t, reg, fakeResolver{"ytdlp": dl})
	p := pipelineFor("video")

	if err := e.Execute(context.Background(), p, newAggregator(p)); err == nil {
		t.Fatal("Execute() = nil error, want failure")
	}

	if p.Status != models.PipelineFailed {
		t.Errorf("pipeline status = %q, want failed", p.Status)
	}
	if dl.invoked != 3 {
		t.Errorf("collaborator invoked %d times, want 3 (MaxAttempts)", dl.invoked)
	}
}

func TestExecuteDoesNotRetryFatalKinds(t *testing.T) {
	for _, kind := range []collab.ErrorKind{collab.KindAuth, collab.KindInvalidInput, collab.KindUnknown} {
		t.Run(kind.String(), func(t *testing.T) {
			reg := twoStepRegistry(t)
			dl := &fakeCollaborator{script: []error{collab.NewError(kind, "ytdlp", errors.New("boom"))}}
			e := newTestExecutor(t, reg, fakeResolver{"ytdlp": dl})
			p := pipelineFor("video")

			if err := e.Execute(context.Background(), p, newAggregator(p)); err == nil {
				t.Fatal("Execute() = nil error, want failure")
			}
			if dl.invoked != 1 {
				t.Errorf("collaborator invoked %d times, want 1", dl.invoked)
			}
		})
	}
}

func TestExecuteFailureSkipsRemainingKeepsArtifacts(t *testing.T) {
	reg := twoStepRegistry(t)
	dl := &fakeCollaborator{}
	tr := &fakeCollaborator{script: []error{collab.NewError(collab.KindInvalidInput, "whisper", errors.New("bad codec"))}}
	e := newTestExecutor(t, reg, fakeResolver{"ytdlp": dl, "whisper": tr})
	p := pipelineFor("video", "transcribe")

	if err := e.Execute(context.Background(), p, newAggregator(p)); err == nil {
		t.Fatal("Execute() = nil error, want failure")
	}

	if p.Steps[0].Status != models.StepSucceeded {
		t.Errorf("step 0 status = %q, want succeeded", p.Steps[0].Status)
	}
	if p.Steps[0].Artifact == nil {
		t.Error("step 0 artifact was dropped on later failure")
	}
	if p.Steps[1].Status != models.StepFailed {
		t.Errorf("step 1 status = %q, want failed", p.Steps[1].Status)
	}
	if p.Steps[1].Error == "" {
		t.Error("step 1 error is empty")
	}
	if p.Error == "" {
		t.Error("pipeline error is empty")
	}
}

func TestExecuteFailureSkipsAllLaterSteps(t *testing.T) {
	reg := twoStepRegistry(t)
	dl := &fakeCollaborator{script: []error{collab.NewError(collab.KindInvalidInput, "ytdlp", errors.New("no url"))}}
	tr := &fakeCollaborator{}
	e := newTestExecutor(t, reg, fakeResolver{"ytdlp": dl, "whisper": tr})
	p := pipelineFor("video", "transcribe")

	if err := e.Execute(context.Background(), p, newAggregator(p)); err == nil {
		t.Fatal("Execute() = nil error, want failure")
	}

	if p.Steps[1].Status != models.StepSkipped {
		t.Errorf("step 1 status = %q, want skipped", p.Steps[1].Status)
	}
	if tr.invoked != 0 {
		t.Errorf("later collaborator invoked %d times, want 0", tr.invoked)
	}
}

func TestExecuteStepTimeout(t *testing.T) {
	reg, err := registry.New([]registry.CapabilityProfile{{
		ID:             "video",
		DisplayName:    "Video Downloader",
		Keywords:       []registry.Keyword{{Phrase: "download", Weight: 1}},
		Produces:       models.KindVideoFile,
		CollaboratorID: "ytdlp",
		StepTimeout:    20 * time.Millisecond,
	}})
	if err != nil {
		t.Fatal(err)
	}
	dl := &fakeCollaborator{block: true}
	e := newTestExecutor(t, reg, fakeResolver{"ytdlp": dl})
	p := pipelineFor("video")

	execErr := e.Execute(context.Background(), p, newAggregator(p))
	if execErr == nil {
		t.Fatal("Execute() = nil error, want timeout failure")
	}
	if !errors.Is(execErr, ErrStepTimedOut) {
		t.Fatalf("Execute() error = %v, want ErrStepTimedOut", execErr)
	}
	if p.Status != models.PipelineFailed {
		t.Errorf("pipeline status = %q, want failed", p.Status)
	}
}

func TestExecuteCancelledBeforeStart(t *testing.T) {
	reg := twoStepRegistry(t)
	dl := &fakeCollaborator{}
	e := newTestExecutor(t, reg, fakeResolver{"ytdlp": dl})
	p := pipelineFor("video")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := e.Execute(ctx, p, newAggregator(p)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if p.Status != models.PipelineCancelled {
		t.Errorf("pipeline status = %q, want cancelled", p.Status)
	}
	if p.Steps[0].Status != models.StepSkipped {
		t.Errorf("step 0 status = %q, want skipped", p.Steps[0].Status)
	}
	if dl.invoked != 0 {
		t.Errorf("collaborator invoked %d times after cancel, want 0", dl.invoked)
	}
}

func TestExecuteCancelledMidStep(t *testing.T) {
	reg := twoStepRegistry(t)
	dl := &fakeCollaborator{block: true}
	tr := &fakeCollaborator{}
	e := newTestExecutor(t, reg, fakeResolver{"ytdlp": dl, "whisper": tr})
	p := pipelineFor("video", "transcribe")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if err := e.Execute(ctx, p, newAggregator(p)); !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
	if p.Status != models.PipelineCancelled {
		t.Errorf("pipeline status = %q, want cancelled", p.Status)
	}
	if tr.invoked != 0 {
		t.Errorf("later collaborator invoked %d times after cancel, want 0", tr.invoked)
	}
}

func TestExecuteBindsPreviousArtifact(t *testing.T) {
	reg := twoStepRegistry(t)
	dl := &fakeCollaborator{}
	var gotInput collab.Input
	tr := &recordingCollaborator{record: &gotInput}
	e := newTestExecutor(t, reg, fakeResolver{"ytdlp": dl, "whisper": tr})
	p := pipelineFor("video", "transcribe")

	if err := e.Execute(context.Background(), p, newAggregator(p)); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if gotInput.Artifact == nil {
		t.Fatal("step 1 received no input artifact")
	}
	if gotInput.Artifact != p.Steps[0].Artifact {
		t.Error("step 1 input is not step 0's artifact")
	}
}

// recordingCollaborator captures the input it was invoked with.
type recordingCollaborator struct {
	record *collab.Input
}

func (r *recordingCollaborator) Invoke(ctx context.Context, in collab.Input, sink collab.Sink) (*models.Artifact, error) {
	*r.record = in
	return &models.Artifact{Kind: models.KindTranscript, Location: "/out/final"}, nil
}
