package transport

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/taskmind/taskmind/internal/progress"
	"github.com/taskmind/taskmind/pkg/models"
)

// Console writes engine output to a terminal.
type Console struct {
	out io.Writer

	header  *color.Color
	good    *color.Color
	bad     *color.Color
	subtle  *color.Color
	warning *color.Color
}

// NewConsole creates a Console writing to stdout.
func NewConsole() *Console {
	return NewConsoleTo(os.Stdout)
}

// NewConsoleTo creates a Console writing to w.
func NewConsoleTo(w io.Writer) *Console {
	return &Console{
		out:     w,
		header:  color.New(color.FgCyan, color.Bold),
		good:    color.New(color.FgGreen),
		bad:     color.New(color.FgRed),
		subtle:  color.New(color.Faint),
		warning: color.New(color.FgYellow),
	}
}

// Clarify implements Transport.
func (c *Console) Clarify(sessionID, message string, questions []string) {
	c.header.Fprintln(c.out, "I need a bit more detail.")
	fmt.Fprintln(c.out, message)
	for _, q := range questions {
		fmt.Fprintf(c.out, "  - %s\n", q)
	}
}

// Confirm implements Transport.
func (c *Console) Confirm(p *models.Pipeline) {
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.DisplayName
	}
	c.header.Fprintf(c.out, "Pipeline %s: %s\n", p.ID, strings.Join(names, " -> "))
}

// Progress implements Transport.
func (c *Console) Progress(s progress.Snapshot) {
	if s.StepIndex < 0 {
		return
	}
	line := fmt.Sprintf("[%5.1f%%] step %d %s (%.0f%%)", s.Overall, s.StepIndex+1, s.StepLabel, s.StepPercent)
	if s.ETA > 0 {
		line += fmt.Sprintf(" eta %s", s.ETA.Round(1e9))
	}
	c.subtle.Fprintln(c.out, line)
}

// Result implements Transport.
func (c *Console) Result(p *models.Pipeline) {
	switch p.Status {
	case models.PipelineSucceeded:
		c.good.Fprintf(c.out, "Pipeline %s succeeded.\n", p.ID)
	case models.PipelineCancelled:
		c.warning.Fprintf(c.out, "Pipeline %s cancelled.\n", p.ID)
	default:
		c.bad.Fprintf(c.out, "Pipeline %s failed: %s\n", p.ID, p.Error)
	}

	for i, s := range p.Steps {
		mark := " "
		switch s.Status {
		case models.StepSucceeded:
			mark = "+"
		case models.StepFailed:
			mark = "x"
		case models.StepSkipped:
			mark = "-"
		}
		line := fmt.Sprintf("  %s %d. %s", mark, i+1, s.DisplayName)
		if s.Retries() > 0 {
			line += fmt.Sprintf(" (%d retries)", s.Retries())
		}
		if s.Artifact != nil {
			line += fmt.Sprintf(" -> %s %s", s.Artifact.Kind, s.Artifact.Location)
		}
		if s.Error != "" {
			line += fmt.Sprintf(" [%s]", s.Error)
		}
		fmt.Fprintln(c.out, line)
	}
}

// Notice implements Transport.
func (c *Console) Notice(message string) {
	c.warning.Fprintln(c.out, message)
}

// Verify Console implements Transport at compile time.
var _ Transport = (*Console)(nil)
