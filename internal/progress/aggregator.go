// Package progress merges per-step collaborator progress into
// pipeline-level snapshots. Emission never blocks the executor: consumers
// see at most the latest snapshot per pipeline, and emissions are throttled
// to one per interval.
package progress

import (
	"sync"
	"time"

	"github.com/taskmind/taskmind/internal/collab"
	"github.com/taskmind/taskmind/pkg/models"
)

// DefaultInterval is the minimum time between throttled emissions.
const DefaultInterval = 100 * time.Millisecond

// Snapshot is a point-in-time view of a pipeline's progress.
type Snapshot struct {
	// PipelineID identifies the pipeline.
	PipelineID string
	// Overall is the weighted pipeline completion percent in [0,100].
	// It never decreases across the pipeline's lifetime.
	Overall float64
	// StepIndex is the index of the step currently running, -1 if none.
	StepIndex int
	// StepLabel is that step's display name.
	StepLabel string
	// StepPercent is the step-local completion percent.
	StepPercent float64
	// ETA is the current step's remaining-time estimate, zero if unknown.
	ETA time.Duration
	// Status is the pipeline status at emission time.
	Status models.PipelineStatus
	// At is when the snapshot was taken.
	At time.Time
}

// Aggregator tracks one pipeline's progress. It is owned by the executor
// worker running the pipeline but its snapshot channel may be consumed from
// any goroutine.
type Aggregator struct {
	pipelineID string
	labels     []string
	weights    []float64

	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	stepPct  []float64
	overall  float64
	current  int
	eta      time.Duration
	status   models.PipelineStatus
	lastEmit time.Time
	closed   bool

	out chan Snapshot
}

// New creates an Aggregator for the pipeline. weightFor returns the relative
// progress weight for a capability; zero or negative means uniform. interval
// <= 0 selects the default throttle interval.
func New(p *models.Pipeline, weightFor func(capabilityID string) float64, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}

	n := len(p.Steps)
	labels := make([]string, n)
	weights := make([]float64, n)
	var total float64
	for i, s := range p.Steps {
		labels[i] = s.DisplayName
		w := 1.0
		if weightFor != nil {
			if v := weightFor(s.CapabilityID); v > 0 {
				w = v
			}
		}
		weights[i] = w
		total += w
	}
	// Normalize so step weights sum to 1.
	for i := range weights {
		weights[i] /= total
	}

	return &Aggregator{
		pipelineID: p.ID,
		labels:     labels,
		weights:    weights,
		interval:   interval,
		now:        time.Now,
		stepPct:    make([]float64, n),
		current:    -1,
		status:     p.Status,
		// Depth 1: only the most recent snapshot is retained under backpressure.
		out: make(chan Snapshot, 1),
	}
}

// Snapshots returns the snapshot channel. It is closed after the terminal
// snapshot has been emitted.
func (a *Aggregator) Snapshots() <-chan Snapshot {
	return a.out
}

// SinkFor returns a collaborator progress sink bound to step i.
func (a *Aggregator) SinkFor(i int) collab.Sink {
	return collab.SinkFunc(func(r collab.Report) {
		a.StepProgress(i, r)
	})
}

// StepStarted records that step i began running and force-emits a snapshot.
func (a *Aggregator) StepStarted(i int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = i
	a.eta = 0
	a.status = models.PipelineRunning
	a.emitLocked(true)
}

// StepProgress records a collaborator progress report for step i.
// Step progress is clamped to [0,100] and never decreases within the step,
// so a collaborator that reports regressing values can't move the overall
// percent backwards.
func (a *Aggregator) StepProgress(i int, r collab.Report) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.stepPct) {
		return
	}

	pct := r.Percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	if pct > a.stepPct[i] {
		a.stepPct[i] = pct
	}
	if r.ETA > 0 {
		a.eta = r.ETA
	}
	a.recomputeLocked()
	a.emitLocked(false)
}

// StepDone forces step i to 100% and force-emits a snapshot.
func (a *Aggregator) StepDone(i int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i >= 0 && i < len(a.stepPct) {
		a.stepPct[i] = 100
	}
	a.eta = 0
	a.recomputeLocked()
	a.emitLocked(true)
}

// Finish emits the terminal snapshot and closes the snapshot channel.
func (a *Aggregator) Finish(status models.PipelineStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.status = status
	a.current = -1
	if status == models.PipelineSucceeded {
		for i := range a.stepPct {
			a.stepPct[i] = 100
		}
		a.recomputeLocked()
	}
	a.emitLocked(true)
	a.closed = true
	close(a.out)
}

// Overall returns the current overall percent.
func (a *Aggregator) Overall() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.overall
}

// recomputeLocked recalculates the weighted overall percent. The overall
// value is clamped monotonic non-decreasing.
func (a *Aggregator) recomputeLocked() {
	var sum float64
	for i, pct := range a.stepPct {
		sum += a.weights[i] * pct
	}
	if sum > a.overall {
		a.overall = sum
	}
}

// emitLocked publishes a snapshot. Throttled emissions are dropped if one
// was published within the interval; forced emissions (step transitions and
// terminal states) always go out. If the consumer hasn't drained the
// channel, the stale snapshot is replaced with the new one.
func (a *Aggregator) emitLocked(force bool) {
	if a.closed {
		return
	}
	now := a.now()
	if !force && now.Sub(a.lastEmit) < a.interval {
		return
	}
	a.lastEmit = now

	s := Snapshot{
		PipelineID: a.pipelineID,
		Overall:    a.overall,
		StepIndex:  a.current,
		Status:     a.status,
		ETA:        a.eta,
		At:         now,
	}
	if a.current >= 0 && a.current < len(a.labels) {
		s.StepLabel = a.labels[a.current]
		s.StepPercent = a.stepPct[a.current]
	}

	// Drop-oldest, queue depth 1: never block the executor.
	select {
	case a.out <- s:
	default:
		select {
		case <-a.out:
		default:
		}
		select {
		case a.out <- s:
		default:
		}
	}
}
