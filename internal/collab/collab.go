// Package collab defines the contract between the pipeline engine and the
// external systems that actually perform capability work.
package collab

import (
	"context"
	"time"

	"github.com/taskmind/taskmind/pkg/models"
)

// Report is one progress update from a collaborator.
type Report struct {
	// Percent is the step-local completion percent in [0,100].
	Percent float64
	// ETA is the collaborator's remaining-time estimate, zero if unknown.
	ETA time.Duration
}

// Sink receives progress reports during a collaborator invocation.
// Implementations must not block the collaborator.
type Sink interface {
	Report(r Report)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Report)

// Report implements Sink.
func (f SinkFunc) Report(r Report) { f(r) }

// Input is what a step hands to its collaborator: the original request for
// step 0, or the previous step's artifact for later steps.
type Input struct {
	Request  *models.Request
	Artifact *models.Artifact
}

// Collaborator performs the work of one capability.
// Implementations must tolerate at-least-once invocation: the executor
// retries transient failures, and a retried call must not corrupt state.
// Implementations should honor ctx cancellation where the underlying tool
// allows it; otherwise the executor lets the call finish and cancels at the
// step boundary.
type Collaborator interface {
	Invoke(ctx context.Context, in Input, sink Sink) (*models.Artifact, error)
}

// Resolver looks up collaborators by the id named in a capability profile.
type Resolver interface {
	Resolve(id string) (Collaborator, error)
}
