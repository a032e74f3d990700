// Package chain turns classification results into validated pipelines.
// Building and starting execution are separate operations, so a caller can
// ask for confirmation before any collaborator is touched.
package chain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskmind/taskmind/internal/classify"
	"github.com/taskmind/taskmind/internal/registry"
	"github.com/taskmind/taskmind/pkg/models"
)

// DefaultMaxSteps bounds pipeline length.
const DefaultMaxSteps = 4

// ErrTooLong is returned when a classification yields more steps than the
// configured maximum. No partial pipeline is built.
var ErrTooLong = errors.New("pipeline exceeds maximum chain length")

// IncompatibleError reports an adjacent pair of capabilities whose artifact
// kinds don't line up. The whole build aborts; no partial pipeline is built.
type IncompatibleError struct {
	// StepIndex is the index of the later step, whose accepted kinds do not
	// include what the earlier step produces.
	StepIndex int
	// Produces is what step StepIndex-1 outputs.
	Produces models.ArtifactKind
	// CapabilityID is the capability at StepIndex.
	CapabilityID string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("step %d (%s) does not accept %s produced by the previous step",
		e.StepIndex, e.CapabilityID, e.Produces)
}

// Builder constructs pipelines from classification results.
type Builder struct {
	reg      *registry.Registry
	maxSteps int
}

// New creates a Builder over the given registry. maxSteps <= 0 selects the
// default chain length bound.
func New(reg *registry.Registry, maxSteps int) *Builder {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Builder{reg: reg, maxSteps: maxSteps}
}

// Build turns a classification result into a pending Pipeline for the given
// request. Step 0 binds to the request; step k>0 binds to step k-1's result
// artifact. For multi-step results every adjacent pair is validated: the
// earlier capability's produced kind must be among the later one's accepted
// kinds, and the first violation aborts the whole build.
func (b *Builder) Build(res classify.Result, req *models.Request) (*models.Pipeline, error) {
	if len(res.Matches) == 0 {
		return nil, fmt.Errorf("chain: empty classification result")
	}
	if len(res.Matches) > b.maxSteps {
		return nil, fmt.Errorf("chain: %w: %d steps, max %d", ErrTooLong, len(res.Matches), b.maxSteps)
	}

	steps := make([]*models.PipelineStep, len(res.Matches))
	for i, m := range res.Matches {
		p := b.reg.Get(m.CapabilityID)
		if p == nil {
			return nil, fmt.Errorf("chain: unknown capability %q", m.CapabilityID)
		}
		if i > 0 {
			prev := b.reg.Get(res.Matches[i-1].CapabilityID)
			if !p.AcceptsKind(prev.Produces) {
				return nil, &IncompatibleError{
					StepIndex:    i,
					Produces:     prev.Produces,
					CapabilityID: p.ID,
				}
			}
		}
		steps[i] = &models.PipelineStep{
			CapabilityID: p.ID,
			DisplayName:  p.DisplayName,
			Status:       models.StepPending,
		}
	}

	return &models.Pipeline{
		ID:        uuid.New().String()[:8],
		SessionID: req.SessionID,
		Request:   req,
		Steps:     steps,
		Status:    models.PipelinePending,
		CreatedAt: time.Now(),
	}, nil
}
