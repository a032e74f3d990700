package collab

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/taskmind/taskmind/pkg/models"
)

// Script runs a capability as an external command, the way the TaskMind
// capabilities are actually packaged (yt-dlp, whisper, rclone, ffmpeg).
//
// The command receives the input location as its final argument and reports
// over stdout, one directive per line:
//
//	PROGRESS <percent>
//	ETA <seconds>
//	RESULT <location>
//
// Exit codes map to error kinds: 2 invalid input, 3 auth, 4 rate limited,
// 5 network; anything else non-zero is unknown.
type Script struct {
	// Name labels the collaborator in errors, e.g. "ytdlp".
	Name string
	// Command is the executable and fixed arguments.
	Command []string
	// WorkDir is the working directory for the command, empty for inherit.
	WorkDir string
	// Produces is the artifact kind stamped on results.
	Produces models.ArtifactKind
}

// Invoke implements Collaborator.
func (s *Script) Invoke(ctx context.Context, in Input, sink Sink) (*models.Artifact, error) {
	if len(s.Command) == 0 {
		return nil, NewError(KindInvalidInput, s.Name, fmt.Errorf("no command configured"))
	}

	args := append([]string{}, s.Command[1:]...)
	args = append(args, inputLocation(in))

	cmd := exec.CommandContext(ctx, s.Command[0], args...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, NewError(KindUnknown, s.Name, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, NewError(KindUnknown, s.Name, err)
	}

	var result string
	var eta time.Duration
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		directive, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		if !ok {
			continue
		}
		switch directive {
		case "PROGRESS":
			if pct, err := strconv.ParseFloat(value, 64); err == nil {
				sink.Report(Report{Percent: pct, ETA: eta})
			}
		case "ETA":
			if secs, err := strconv.ParseFloat(value, 64); err == nil {
				eta = time.Duration(secs * float64(time.Second))
			}
		case "RESULT":
			result = value
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			// Let the executor classify cancellation and timeout.
			return nil, ctx.Err()
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, NewError(kindForExit(exitErr.ExitCode()), s.Name, err)
		}
		return nil, NewError(KindUnknown, s.Name, err)
	}

	if result == "" {
		return nil, NewError(KindUnknown, s.Name, fmt.Errorf("command produced no RESULT"))
	}
	return &models.Artifact{Kind: s.Produces, Location: result}, nil
}

// inputLocation picks the location argument for the command.
func inputLocation(in Input) string {
	if in.Artifact != nil {
		return in.Artifact.Location
	}
	if in.Request != nil {
		if in.Request.Artifact != nil {
			return in.Request.Artifact.Location
		}
		return in.Request.Text
	}
	return ""
}

// kindForExit maps the script exit code convention to error kinds.
func kindForExit(code int) ErrorKind {
	switch code {
	case 2:
		return KindInvalidInput
	case 3:
		return KindAuth
	case 4:
		return KindRateLimited
	case 5:
		return KindNetwork
	default:
		return KindUnknown
	}
}

// Verify Script implements Collaborator at compile time.
var _ Collaborator = (*Script)(nil)
