package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/waabox/circledeck/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	dimmedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true)

	workflowStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	succeededStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	runningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	canceledStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	waitingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const separator = "────────────────────────────────────────────────────────────\n"

// stateBadge renders a pipeline display state as a fixed-width label.
func stateBadge(s domain.DisplayState) string {
	label := s.String()
	for len(label) < len("succeeded") {
		label += " "
	}
	switch s {
	case domain.StateSucceeded:
		return succeededStyle.Render("✓ " + label)
	case domain.StateRunning:
		return runningStyle.Render("● " + label)
	case domain.StateFailed:
		return failedStyle.Render("✗ " + label)
	case domain.StateCanceled:
		return canceledStyle.Render("○ " + label)
	default:
		return waitingStyle.Render("↷ " + label)
	}
}

func jobIcon(s domain.JobStatus) string {
	switch s {
	case domain.JobSuccess:
		return succeededStyle.Render("✓")
	case domain.JobFailed:
		return failedStyle.Render("✗")
	case domain.JobRunning:
		return runningStyle.Render("●")
	case domain.JobCanceled:
		return canceledStyle.Render("○")
	case domain.JobBlocked, domain.JobNotRunning, domain.JobQueued:
		return waitingStyle.Render("↷")
	default:
		return "?"
	}
}
