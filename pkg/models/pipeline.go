package models

import "time"

// StepStatus represents the state of a single pipeline step.
type StepStatus string

const (
	// StepPending indicates the step has not started.
	StepPending StepStatus = "pending"
	// StepRunning indicates the step's collaborator is being invoked.
	StepRunning StepStatus = "running"
	// StepSucceeded indicates the step completed and produced an artifact.
	StepSucceeded StepStatus = "succeeded"
	// StepFailed indicates the step failed fatally.
	StepFailed StepStatus = "failed"
	// StepSkipped indicates the step never ran because an earlier step failed
	// or the pipeline was cancelled.
	StepSkipped StepStatus = "skipped"
)

// Valid returns true if the status is a known value.
func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepRunning, StepSucceeded, StepFailed, StepSkipped:
		return true
	default:
		return false
	}
}

// Terminal returns true if the step can no longer change state.
func (s StepStatus) Terminal() bool {
	return s == StepSucceeded || s == StepFailed || s == StepSkipped
}

// PipelineStatus represents the overall state of a pipeline.
type PipelineStatus string

const (
	// PipelinePending indicates the pipeline is built but not started.
	PipelinePending PipelineStatus = "pending"
	// PipelineRunning indicates execution is in progress.
	PipelineRunning PipelineStatus = "running"
	// PipelineSucceeded indicates every step succeeded.
	PipelineSucceeded PipelineStatus = "succeeded"
	// PipelineFailed indicates a step failed fatally.
	PipelineFailed PipelineStatus = "failed"
	// PipelineCancelled indicates the pipeline was cancelled by the user.
	PipelineCancelled PipelineStatus = "cancelled"
	// PipelineAbandoned is recorded by the history store for pipelines that
	// were in flight when the process exited. It is never set by the executor.
	PipelineAbandoned PipelineStatus = "abandoned"
)

// Valid returns true if the status is a known value.
func (s PipelineStatus) Valid() bool {
	switch s {
	case PipelinePending, PipelineRunning, PipelineSucceeded, PipelineFailed, PipelineCancelled, PipelineAbandoned:
		return true
	default:
		return false
	}
}

// Terminal returns true if the pipeline can no longer change state.
func (s PipelineStatus) Terminal() bool {
	switch s {
	case PipelineSucceeded, PipelineFailed, PipelineCancelled, PipelineAbandoned:
		return true
	default:
		return false
	}
}

// PipelineStep is one capability invocation within a pipeline.
// Step 0 binds to the original request; step k>0 binds to step k-1's artifact.
type PipelineStep struct {
	// CapabilityID identifies the capability profile for this step.
	CapabilityID string `json:"capability_id"`
	// DisplayName is the capability's human-readable name, copied at build time.
	DisplayName string `json:"display_name"`
	// Status is the current state of the step.
	Status StepStatus `json:"status"`
	// Progress is the step-local completion percent in [0,100].
	// It never decreases within a step.
	Progress float64 `json:"progress"`
	// Attempts is how many times the collaborator has been invoked.
	Attempts int `json:"attempts,omitempty"`
	// Artifact is the step result, set when the step succeeds.
	Artifact *Artifact `json:"artifact,omitempty"`
	// Error holds a readable error description if the step failed.
	Error string `json:"error,omitempty"`
	// StartedAt is when the step began running.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the step reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Retries returns the number of failed attempts before the final one.
func (s *PipelineStep) Retries() int {
	if s.Attempts <= 1 {
		return 0
	}
	return s.Attempts - 1
}

// Pipeline is an ordered sequence of capability invocations satisfying one
// request. It is created pending by the chain builder, mutated in place by
// the executor that owns it, and released once terminal.
type Pipeline struct {
	// ID is the unique identifier for this pipeline.
	ID string `json:"id"`
	// SessionID is the session that owns this pipeline.
	SessionID string `json:"session_id"`
	// Request is the originating request; step 0's input binding.
	Request *Request `json:"request"`
	// Steps are the capability invocations in execution order.
	Steps []*PipelineStep `json:"steps"`
	// Status is the overall pipeline state.
	Status PipelineStatus `json:"status"`
	// Error holds a readable description of the terminal failure, if any.
	Error string `json:"error,omitempty"`
	// CreatedAt is when the chain builder produced the pipeline.
	CreatedAt time.Time `json:"created_at"`
	// StartedAt is when the executor picked the pipeline up.
	StartedAt *time.Time `json:"started_at,omitempty"`
	// CompletedAt is when the pipeline reached a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CurrentStep returns the index of the first non-terminal step, or -1 if all
// steps are terminal.
func (p *Pipeline) CurrentStep() int {
	for i, s := range p.Steps {
		if !s.Status.Terminal() {
			return i
		}
	}
	return -1
}

// Artifacts returns the artifacts of all succeeded steps, in step order.
// On failure these are surfaced to the user rather than discarded.
func (p *Pipeline) Artifacts() []*Artifact {
	var out []*Artifact
	for _, s := range p.Steps {
		if s.Status == StepSucceeded && s.Artifact != nil {
			out = append(out, s.Artifact)
		}
	}
	return out
}

// CapabilityIDs returns the capability ids of the steps in order.
func (p *Pipeline) CapabilityIDs() []string {
	ids := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.CapabilityID
	}
	return ids
}
