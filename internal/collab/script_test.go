package collab

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/taskmind/taskmind/pkg/models"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func shScript(t *testing.T, body string) *Script {
	t.Helper()
	return &Script{
		Name:     "testtool",
		Command:  []string{"/bin/sh", "-c", body, "testtool"},
		Produces: models.KindTranscript,
	}
}

type captureSink struct {
	reports []Report
}

func (c *captureSink) Report(r Report) { c.reports = append(c.reports, r) }

func TestScriptInvoke(t *testing.T) {
	skipWithoutShell(t)

	s := shScript(t, `
echo "PROGRESS 25"
echo "ETA 30"
echo "PROGRESS 80"
echo "RESULT /tmp/out.txt"
`)
	sink := &captureSink{}

	artifact, err := s.Invoke(context.Background(), Input{Request: &models.Request{Text: "go"}}, sink)
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if artifact.Location != "/tmp/out.txt" {
		t.Errorf("artifact location = %q, want /tmp/out.txt", artifact.Location)
	}
	if artifact.Kind != models.KindTranscript {
		t.Errorf("artifact kind = %q, want transcript", artifact.Kind)
	}

	if len(sink.reports) != 2 {
		t.Fatalf("got %d progress reports, want 2", len(sink.reports))
	}
	if sink.reports[0].Percent != 25 {
		t.Errorf("first report percent = %g, want 25", sink.reports[0].Percent)
	}
	if sink.reports[1].ETA != 30*time.Second {
		t.Errorf("second report ETA = %s, want 30s", sink.reports[1].ETA)
	}
}

func TestScriptExitCodeMapping(t *testing.T) {
	skipWithoutShell(t)

	tests := []struct {
		code int
		want ErrorKind
	}{
		{1, KindUnknown},
		{2, KindInvalidInput},
		{3, KindAuth},
		{4, KindRateLimited},
		{5, KindNetwork},
	}
	for _, tt := range tests {
		s := shScript(t, fmt.Sprintf("exit %d", tt.code))
		_, err := s.Invoke(context.Background(), Input{}, &captureSink{})
		if err == nil {
			t.Fatalf("exit %d: Invoke() = nil error", tt.code)
		}
		if got := KindOf(err); got != tt.want {
			t.Errorf("exit %d: KindOf() = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestScriptNoResult(t *testing.T) {
	skipWithoutShell(t)

	s := shScript(t, `echo "PROGRESS 50"`)
	if _, err := s.Invoke(context.Background(), Input{}, &captureSink{}); err == nil {
		t.Fatal("Invoke() without RESULT: want error, got nil")
	}
}

func TestScriptCancellation(t *testing.T) {
	skipWithoutShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	s := shScript(t, "sleep 10")

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := s.Invoke(ctx, Input{}, &captureSink{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Invoke() error = %v, want context.Canceled", err)
	}
}

func TestScriptInputLocation(t *testing.T) {
	req := &models.Request{Text: "download it", Artifact: &models.Artifact{Location: "/in/attached.mp4"}}

	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"previous artifact wins", Input{Request: req, Artifact: &models.Artifact{Location: "/in/prev.wav"}}, "/in/prev.wav"},
		{"request artifact", Input{Request: req}, "/in/attached.mp4"},
		{"request text", Input{Request: &models.Request{Text: "download it"}}, "download it"},
		{"empty", Input{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inputLocation(tt.in); got != tt.want {
				t.Errorf("inputLocation() = %q, want %q", got, tt.want)
			}
		})
	}
}
