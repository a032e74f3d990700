package models

import "testing"

func TestStepStatusTerminal(t *testing.T) {
	tests := []struct {
		status StepStatus
		want   bool
	}{
		{StepPending, false},
		{StepRunning, false},
		{StepSucceeded, true},
		{StepFailed, true},
		{StepSkipped, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestPipelineStatusTerminal(t *testing.T) {
	tests := []struct {
		status PipelineStatus
		want   bool
	}{
		{PipelinePending, false},
		{PipelineRunning, false},
		{PipelineSucceeded, true},
		{PipelineFailed, true},
		{PipelineCancelled, true},
		{PipelineAbandoned, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestArtifactKindValid(t *testing.T) {
	for _, k := range []ArtifactKind{KindVideoFile, KindAudioFile, KindTranscript, KindScrapedDocument, KindDocument, KindDriveFile} {
		if !k.Valid() {
			t.Errorf("%s.Valid() = false, want true", k)
		}
	}
	if ArtifactKind("hologram").Valid() {
		t.Error("unknown kind reported valid")
	}
	if ArtifactKind("").Valid() {
		t.Error("empty kind reported valid")
	}
}

func TestRetries(t *testing.T) {
	tests := []struct {
		attempts int
		want     int
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{4, 3},
	}
	for _, tt := range tests {
		s := &PipelineStep{Attempts: tt.attempts}
		if got := s.Retries(); got != tt.want {
			t.Errorf("Retries() with %d attempts = %d, want %d", tt.attempts, got, tt.want)
		}
	}
}

func TestCurrentStep(t *testing.T) {
	p := &Pipeline{Steps: []*PipelineStep{
		{Status: StepSucceeded},
		{Status: StepRunning},
		{Status: StepPending},
	}}
	if got := p.CurrentStep(); got != 1 {
		t.Errorf("CurrentStep() = %d, want 1", got)
	}

	for _, s := range p.Steps {
		s.Status = StepSucceeded
	}
	if got := p.CurrentStep(); got != -1 {
		t.Errorf("CurrentStep() with all terminal = %d, want -1", got)
	}
}

func TestArtifactsKeepsOnlySucceeded(t *testing.T) {
	a0 := &Artifact{Kind: KindVideoFile, Location: "/out/v"}
	p := &Pipeline{Steps: []*PipelineStep{
		{Status: StepSucceeded, Artifact: a0},
		{Status: StepFailed},
		{Status: StepSkipped},
	}}

	got := p.Artifacts()
	if len(got) != 1 || got[0] != a0 {
		t.Errorf("Artifacts() = %v, want [%v]", got, a0)
	}
}

func TestCapabilityIDs(t *testing.T) {
	p := &Pipeline{Steps: []*PipelineStep{
		{CapabilityID: "video"},
		{CapabilityID: "transcribe"},
	}}
	got := p.CapabilityIDs()
	want := []string{"video", "transcribe"}
	if len(got) != len(want) {
		t.Fatalf("CapabilityIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("CapabilityIDs()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
