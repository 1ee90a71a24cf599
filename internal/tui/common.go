package tui

import (
	"fmt"
	"time"

	"github.com/Vortex-404/task-enforcer/internal/store"
	tea "github.com/charmbracelet/bubbletea"
)

// viewState represents the currently active view.
type viewState int

const (
	viewTasks viewState = iota
	viewFocus
	viewReports
	viewSync
	viewSettings
)

var viewNames = []string{"Tasks", "Focus", "Reports", "Sync", "Settings"}

// --- Messages ---

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

// focusRequestMsg asks the app to open the focus view on a task.
type focusRequestMsg struct {
	task store.Task
}

type sessionRecordedMsg struct {
	session *store.FocusSession
}

type taskChangedMsg struct {
	task *store.Task
}

// --- Helpers ---

func errStatus(prefix string, err error) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: fmt.Sprintf("%s: %v", prefix, err), isError: true}
	}
}

func infoStatus(text string) tea.Cmd {
	return func() tea.Msg {
		return statusMsg{text: text}
	}
}

func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", m, s)
}

func formatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dh%02dm", minutes/60, minutes%60)
}

// startOfDay returns local midnight of t in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, loc)
}
