// Package tui provides the terminal user interface for watching a pipeline
// run to completion.
package tui

import (
	"fmt"
	"strings"
	"time"

	pbar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taskmind/taskmind/internal/executor"
	"github.com/taskmind/taskmind/internal/progress"
	"github.com/taskmind/taskmind/pkg/models"
)

// SnapshotMsg carries a progress snapshot from the executor.
type SnapshotMsg progress.Snapshot

// RunDoneMsg signals that the pipeline finished.
type RunDoneMsg struct {
	Pipeline *models.Pipeline
	Err      error
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFC857"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#96E6A1"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// App is the bubbletea model for a single pipeline run.
type App struct {
	// run is the pipeline run being watched.
	run *executor.Run
	// latest is the most recent snapshot received.
	latest progress.Snapshot
	// bar renders the overall completion percentage.
	bar pbar.Model
	// width is the terminal width.
	width int
	// done indicates the run has finished.
	done bool
	// result holds the final pipeline state once done.
	result *models.Pipeline
	// quitting indicates the app is shutting down.
	quitting bool
}

// New creates an App watching the given run.
func New(run *executor.Run) *App {
	return &App{
		run:   run,
		bar:   pbar.New(pbar.WithDefaultGradient()),
		width: 80,
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.waitForSnapshot()
}

// waitForSnapshot blocks on the next snapshot. When the channel closes the
// run is finishing, so wait for it and report the final state.
func (a *App) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		if s, ok := <-a.run.Snapshots(); ok {
			return SnapshotMsg(s)
		}
		<-a.run.Done()
		return RunDoneMsg{Pipeline: a.run.Pipeline, Err: a.run.Err()}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !a.done {
				a.run.Cancel()
			}
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.bar.Width = msg.Width - 8

	case SnapshotMsg:
		a.latest = progress.Snapshot(msg)
		return a, a.waitForSnapshot()

	case RunDoneMsg:
		a.done = true
		a.result = msg.Pipeline
		return a, tea.Quit
	}

	return a, nil
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting && !a.done {
		return "Cancelling...\n"
	}

	var b strings.Builder
	p := a.run.Pipeline

	b.WriteString(titleStyle.Render(fmt.Sprintf("Pipeline %s", p.ID)))
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(truncate(p.Request.Text, a.width-4)))
	b.WriteString("\n\n")

	for i, step := range p.Steps {
		b.WriteString(a.viewStep(i, step))
		b.WriteString("\n")
	}

	b.WriteString("\n  ")
	b.WriteString(a.bar.ViewAs(a.latest.Overall / 100))
	b.WriteString("\n")
	b.WriteString(a.viewFooter())
	return b.String()
}

// viewStep renders one step line with its status mark.
func (a *App) viewStep(i int, step *models.PipelineStep) string {
	mark, style := "·", stepStyle
	switch step.Status {
	case models.StepRunning:
		mark, style = "▶", activeStyle
	case models.StepSucceeded:
		mark, style = "✓", okStyle
	case models.StepFailed:
		mark, style = "✗", failStyle
	case models.StepSkipped:
		mark, style = "-", faintStyle
	}

	line := fmt.Sprintf("  %s %s", mark, step.DisplayName)
	if step.Status == models.StepRunning && i == a.latest.StepIndex {
		line += fmt.Sprintf(" %3.0f%%", a.latest.StepPercent)
		if a.latest.ETA > 0 {
			line += faintStyle.Render(fmt.Sprintf(" (about %s left)", a.latest.ETA.Round(time.Second)))
		}
	}
	if step.Retries() > 0 {
		line += faintStyle.Render(fmt.Sprintf(" [retried %dx]", step.Retries()))
	}
	return style.Render(line)
}

// viewFooter renders the final status or help text.
func (a *App) viewFooter() string {
	if a.done {
		switch a.result.Status {
		case models.PipelineSucceeded:
			return okStyle.Render("✓ Pipeline complete")
		case models.PipelineCancelled:
			return faintStyle.Render("Pipeline cancelled")
		default:
			return failStyle.Render(fmt.Sprintf("✗ Pipeline failed: %s", a.result.Error))
		}
	}
	return faintStyle.Render("Press q to cancel")
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// Watch runs the TUI until the pipeline finishes or the user quits.
func Watch(run *executor.Run) (*models.Pipeline, error) {
	program := tea.NewProgram(New(run))
	if _, err := program.Run(); err != nil {
		return nil, fmt.Errorf("run tui: %w", err)
	}
	<-run.Done()
	return run.Pipeline, run.Err()
}
