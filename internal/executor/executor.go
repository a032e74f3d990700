// Package executor drives pipelines from pending to a terminal status.
// Steps within one pipeline run strictly sequentially; concurrency exists
// only across independent pipelines, bounded by the worker pool.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/taskmind/taskmind/internal/collab"
	"github.com/taskmind/taskmind/internal/progress"
	"github.com/taskmind/taskmind/internal/registry"
	"github.com/taskmind/taskmind/pkg/models"
)

// DefaultStepTimeout bounds a step whose capability profile sets no timeout.
const DefaultStepTimeout = 10 * time.Minute

// ErrStepTimedOut marks a step that exceeded its per-step timeout.
var ErrStepTimedOut = errors.New("step timed out")

// Config holds the executor's collaborators and tunables.
type Config struct {
	// Registry is the immutable capability registry.
	Registry *registry.Registry
	// Collaborators resolves collaborator ids from capability profiles.
	Collaborators collab.Resolver
	// Retry bounds transient-failure retries. Zero value means defaults.
	Retry RetryPolicy
	// StepTimeout is the default per-step timeout for profiles that set none.
	StepTimeout time.Duration
}

// Executor runs one pipeline at a time on behalf of a pool worker.
type Executor struct {
	reg         *registry.Registry
	collabs     collab.Resolver
	retry       RetryPolicy
	stepTimeout time.Duration

	// sleep waits between retries; injectable so tests don't wait.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates an Executor from the given config.
func New(cfg Config) *Executor {
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryPolicy()
	}
	timeout := cfg.StepTimeout
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	return &Executor{
		reg:         cfg.Registry,
		collabs:     cfg.Collaborators,
		retry:       retry,
		stepTimeout: timeout,
		sleep:       sleepCtx,
	}
}

// Execute drives the pipeline to a terminal status, mutating it in place.
// The pipeline is owned exclusively by the calling worker. The returned
// error describes the terminal failure, nil on success. Cancellation is
// cooperative: it is checked at step boundaries, and the step context is
// cancelled mid-step for collaborators that support it.
func (e *Executor) Execute(ctx context.Context, p *models.Pipeline, agg *progress.Aggregator) error {
	start := time.Now()
	p.Status = models.PipelineRunning
	p.StartedAt = &start

	for i, step := range p.Steps {
		if ctx.Err() != nil {
			return e.cancelFrom(p, i, agg)
		}

		prof := e.reg.Get(step.CapabilityID)
		if prof == nil {
			return e.failFrom(p, i, agg, fmt.Errorf("unknown capability %q", step.CapabilityID))
		}
		c, err := e.collabs.Resolve(prof.CollaboratorID)
		if err != nil {
			return e.failFrom(p, i, agg, err)
		}

		now := time.Now()
		step.Status = models.StepRunning
		step.StartedAt = &now
		agg.StepStarted(i)

		timeout := prof.StepTimeout
		if timeout <= 0 {
			timeout = e.stepTimeout
		}
		// The timeout covers the whole step, retries included.
		stepCtx, cancel := context.WithTimeout(ctx, timeout)
		artifact, err := e.invokeWithRetry(stepCtx, p, i, c, step, agg.SinkFor(i))
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return e.cancelFrom(p, i, agg)
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w after %s", ErrStepTimedOut, timeout)
			}
			return e.failFrom(p, i, agg, err)
		}

		done := time.Now()
		step.Artifact = artifact
		step.Status = models.StepSucceeded
		step.Progress = 100
		step.CompletedAt = &done
		agg.StepDone(i)
		log.Printf("[executor] pipeline %s step %d (%s) succeeded after %d attempt(s)",
			p.ID, i, step.CapabilityID, step.Attempts)
	}

	end := time.Now()
	p.Status = models.PipelineSucceeded
	p.CompletedAt = &end
	agg.Finish(models.PipelineSucceeded)
	return nil
}

// invokeWithRetry calls the collaborator, retrying network and rate-limit
// failures with bounded backoff. Auth and invalid-input failures are never
// retried. The step's attempt counter is updated as it goes.
func (e *Executor) invokeWithRetry(ctx context.Context, p *models.Pipeline, i int, c collab.Collaborator, step *models.PipelineStep, sink collab.Sink) (*models.Artifact, error) {
	in := e.bindInput(p, i)

	for attempt := 1; ; attempt++ {
		step.Attempts = attempt
		artifact, err := c.Invoke(ctx, in, sink)
		if err == nil {
			return artifact, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		kind := collab.KindOf(err)
		if !kind.Retryable() || attempt >= e.retry.MaxAttempts {
			return nil, err
		}

		delay := e.retry.Delay(attempt)
		log.Printf("[executor] pipeline %s step %d (%s): %s error, retry %d/%d in %s: %v",
			p.ID, i, step.CapabilityID, kind, attempt, e.retry.MaxAttempts-1, delay, err)
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// bindInput resolves the input binding for step i: the original request for
// step 0, the previous step's artifact otherwise.
func (e *Executor) bindInput(p *models.Pipeline, i int) collab.Input {
	if i == 0 {
		return collab.Input{Request: p.Request}
	}
	return collab.Input{Request: p.Request, Artifact: p.Steps[i-1].Artifact}
}

// failFrom marks step i failed, skips every later step, and fails the
// pipeline. Artifacts of already-succeeded steps are retained.
func (e *Executor) failFrom(p *models.Pipeline, i int, agg *progress.Aggregator, cause error) error {
	now := time.Now()
	step := p.Steps[i]
	step.Status = models.StepFailed
	step.Error = cause.Error()
	step.CompletedAt = &now
	skipRemaining(p, i+1, &now)

	p.Status = models.PipelineFailed
	p.Error = fmt.Sprintf("step %d (%s) failed: %v", i, step.DisplayName, cause)
	p.CompletedAt = &now
	agg.Finish(models.PipelineFailed)

	log.Printf("[executor] pipeline %s failed at step %d (%s): %v", p.ID, i, step.CapabilityID, cause)
	return fmt.Errorf("pipeline %s: %s", p.ID, p.Error)
}

// cancelFrom skips step i and every later step and cancels the pipeline.
func (e *Executor) cancelFrom(p *models.Pipeline, i int, agg *progress.Aggregator) error {
	now := time.Now()
	skipRemaining(p, i, &now)
	p.Status = models.PipelineCancelled
	p.CompletedAt = &now
	agg.Finish(models.PipelineCancelled)
	log.Printf("[executor] pipeline %s cancelled at step %d", p.ID, i)
	return context.Canceled
}

// skipRemaining marks all non-terminal steps from index on as skipped.
func skipRemaining(p *models.Pipeline, from int, at *time.Time) {
	for _, s := range p.Steps[from:] {
		if !s.Status.Terminal() {
			s.Status = models.StepSkipped
			s.CompletedAt = at
		}
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
