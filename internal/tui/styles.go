package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/conclave/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Padding(0, 1)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	agentStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("28")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pausedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// statusStyle colors a task status.
func statusStyle(s models.TaskStatus) lipgloss.Style {
	switch s {
	case models.TaskStatusSucceeded:
		return successStyle
	case models.TaskStatusFailed:
		return errorStyle
	case models.TaskStatusRetrying:
		return warnStyle
	case models.TaskStatusDispatched:
		return agentStyle
	case models.TaskStatusSkipped:
		return hintStyle
	default:
		return lipgloss.NewStyle()
	}
}

// statusSymbol is the one-character marker for a task status.
func statusSymbol(s models.TaskStatus) string {
	switch s {
	case models.TaskStatusSucceeded:
		return "✓"
	case models.TaskStatusFailed:
		return "✗"
	case models.TaskStatusRetrying:
		return "↻"
	case models.TaskStatusDispatched:
		return "▶"
	case models.TaskStatusReady:
		return "○"
	case models.TaskStatusSkipped:
		return "–"
	default:
		return "·"
	}
}
