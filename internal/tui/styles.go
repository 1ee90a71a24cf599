package tui

import (
	"github.com/Vortex-404/task-enforcer/internal/store"
	"github.com/charmbracelet/lipgloss"
)

var (
	colorPrimary   = lipgloss.Color("#E4572E")
	colorSecondary = lipgloss.Color("#29335C")
	colorMuted     = lipgloss.Color("#666666")
	colorSuccess   = lipgloss.Color("#2ECC71")
	colorWarning   = lipgloss.Color("#F3A712")
	colorError     = lipgloss.Color("#D7263D")
	colorFg        = lipgloss.Color("#E0E0E0")
	colorSubtle    = lipgloss.Color("#3C3F58")
	colorHighlight = lipgloss.Color("#7AA2F7")
)

var (
	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(colorPrimary).
			Padding(0, 2)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(colorMuted).
				Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSubtle).
			Padding(1, 2)

	activePanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Padding(1, 2)

	// Countdown
	clockIdleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorMuted).
			Align(lipgloss.Center)

	clockRunningStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorPrimary).
				Align(lipgloss.Center)

	clockPausedStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(colorWarning).
				Align(lipgloss.Center)

	clockBreakStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorSuccess).
			Align(lipgloss.Center)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorFg)

	successStyle = lipgloss.NewStyle().
			Foreground(colorSuccess)

	warningStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)

	highlightStyle = lipgloss.NewStyle().
			Foreground(colorHighlight)

	headerStyle = lipgloss.NewStyle().
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Padding(0, 1)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true)

	normalItemStyle = lipgloss.NewStyle().
			Foreground(colorFg)

	doneItemStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			Strikethrough(true)
)

var priorityColors = map[store.Priority]lipgloss.Color{
	store.PriorityLow:      colorMuted,
	store.PriorityMedium:   colorHighlight,
	store.PriorityHigh:     colorWarning,
	store.PriorityCritical: colorError,
}

func priorityBadge(p store.Priority) string {
	c, ok := priorityColors[p]
	if !ok {
		c = colorMuted
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func statusLabel(s store.TaskStatus) string {
	switch s {
	case store.StatusInProgress:
		return warningStyle.Render("in progress")
	case store.StatusCompleted:
		return successStyle.Render("completed")
	case store.StatusFailed:
		return errorStyle.Render("failed")
	case store.StatusAbandoned:
		return errorStyle.Render("abandoned")
	default:
		return mutedStyle.Render("pending")
	}
}
