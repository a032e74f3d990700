package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/taskmind/taskmind/internal/progress"
	"github.com/taskmind/taskmind/internal/registry"
	"github.com/taskmind/taskmind/pkg/models"
)

const (
	// DefaultWorkers is the pool size. Small on purpose: every step leans
	// on heavy external resources (downloads, transcription, uploads).
	DefaultWorkers = 2
	// DefaultQueueDepth bounds the FIFO admission queue.
	DefaultQueueDepth = 64
)

// ErrBusySession is returned when a session already has an active pipeline.
// The new request is rejected, never queued behind or interleaved with the
// running one.
var ErrBusySession = errors.New("session has an active pipeline")

// ErrQueueFull is returned when the admission queue is at capacity.
var ErrQueueFull = errors.New("pipeline queue is full")

// HistoryRecorder persists pipeline lifecycle transitions. Recording is
// best-effort: failures are logged and never fail the pipeline.
type HistoryRecorder interface {
	RecordStart(p *models.Pipeline) error
	RecordFinish(p *models.Pipeline) error
}

// Run is a pipeline admitted to the pool. It is created when the pipeline is
// queued and completed when the pipeline reaches a terminal status.
type Run struct {
	// Pipeline is the pipeline being executed. Only the owning worker
	// mutates it; read it after Done() is closed.
	Pipeline *models.Pipeline

	agg    *progress.Aggregator
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Snapshots returns the run's progress snapshot channel.
func (r *Run) Snapshots() <-chan progress.Snapshot {
	return r.agg.Snapshots()
}

// Done is closed when the pipeline reaches a terminal status.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Err returns the terminal error. Valid after Done() is closed.
func (r *Run) Err() error {
	return r.err
}

// Cancel requests cooperative cancellation. A queued run is cancelled before
// any collaborator is invoked; a running one at the next step boundary, or
// mid-step if its collaborator honors context cancellation.
func (r *Run) Cancel() {
	r.cancel()
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Workers is the number of concurrent pipeline workers.
	Workers int
	// QueueDepth bounds the FIFO admission queue.
	QueueDepth int
	// Executor runs individual pipelines.
	Executor *Executor
	// Registry supplies per-capability progress weights.
	Registry *registry.Registry
	// ProgressInterval is the snapshot throttle interval.
	ProgressInterval time.Duration
	// History records pipeline lifecycle transitions. Optional.
	History HistoryRecorder
}

// Pool runs independent pipelines concurrently on a bounded set of workers,
// admitting them FIFO and allowing at most one active pipeline per
// session. The admission queue is the only structure shared between
// producers (new requests) and the workers.
type Pool struct {
	cfg   PoolConfig
	queue chan *Run

	// active maps session ids to their in-flight run.
	active map[string]*Run
	mu     sync.Mutex

	ctx    context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewPool creates a Pool and starts its workers.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultQueueDepth
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		cfg:    cfg,
		queue:  make(chan *Run, cfg.QueueDepth),
		active: make(map[string]*Run),
		ctx:    ctx,
		stop:   cancel,
	}

	for i := 0; i < cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Submit admits a pending pipeline, rejecting it with ErrBusySession if the
// session already has one in flight. Admission is FIFO; pipelines beyond
// worker capacity wait queued.
func (p *Pool) Submit(pipeline *models.Pipeline) (*Run, error) {
	weightFor := func(capabilityID string) float64 {
		if prof := p.cfg.Registry.Get(capabilityID); prof != nil {
			return prof.ProgressWeight
		}
		return 0
	}

	// Deriving from the pool context lets Stop cancel queued and running
	// pipelines alike.
	runCtx, cancel := context.WithCancel(p.ctx)
	run := &Run{
		Pipeline: pipeline,
		agg:      progress.New(pipeline, weightFor, p.cfg.ProgressInterval),
		ctx:      runCtx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("pool is stopped")
	}
	if existing := p.active[pipeline.SessionID]; existing != nil {
		p.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: session %s", ErrBusySession, pipeline.SessionID)
	}
	p.active[pipeline.SessionID] = run
	p.mu.Unlock()

	select {
	case p.queue <- run:
	default:
		p.release(pipeline.SessionID)
		cancel()
		return nil, ErrQueueFull
	}

	if h := p.cfg.History; h != nil {
		if err := h.RecordStart(pipeline); err != nil {
			log.Printf("[pool] record pipeline %s start: %v", pipeline.ID, err)
		}
	}
	return run, nil
}

// ActiveRun returns the in-flight run for a session, or nil.
func (p *Pool) ActiveRun(sessionID string) *Run {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[sessionID]
}

// Cancel requests cancellation of a session's active pipeline.
// Returns false if the session has none.
func (p *Pool) Cancel(sessionID string) bool {
	p.mu.Lock()
	run := p.active[sessionID]
	p.mu.Unlock()
	if run == nil {
		return false
	}
	run.Cancel()
	return true
}

// Stop cancels all runs, waits for workers to drain, and closes the pool.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.stop()
	p.wg.Wait()
}

// worker consumes the FIFO queue and executes one pipeline at a time.
// Within a run, steps are strictly sequential on this worker.
func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case run := <-p.queue:
			p.execute(id, run)
		}
	}
}

func (p *Pool) execute(workerID int, run *Run) {
	pipeline := run.Pipeline
	log.Printf("[pool] worker %d picked up pipeline %s (%d steps)", workerID, pipeline.ID, len(pipeline.Steps))

	run.err = p.cfg.Executor.Execute(run.ctx, pipeline, run.agg)

	if h := p.cfg.History; h != nil {
		if err := h.RecordFinish(pipeline); err != nil {
			log.Printf("[pool] record pipeline %s finish: %v", pipeline.ID, err)
		}
	}

	p.release(pipeline.SessionID)
	close(run.done)
}

func (p *Pool) release(sessionID string) {
	p.mu.Lock()
	delete(p.active, sessionID)
	p.mu.Unlock()
}
