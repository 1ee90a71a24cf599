package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Vortex-404/task-enforcer/internal/store"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type focusState int

const (
	focusIdle focusState = iota
	focusRunning
	focusPaused
	focusBreak
)

var focusStateNames = map[focusState]string{
	focusIdle:    "READY",
	focusRunning: "FOCUS",
	focusPaused:  "PAUSED",
	focusBreak:   "BREAK",
}

// focusModel runs a countdown against one task and records the elapsed time
// as a focus session once the countdown ends or is stopped.
type focusModel struct {
	store  *store.Store
	width  int
	height int

	task  *store.Task
	state focusState

	startedAt time.Time
	pausedAt  time.Time
	pauseGap  time.Duration
	breakEnd  time.Time

	duration      time.Duration
	breakDuration time.Duration
	remaining     time.Duration
	distractions  int
	completed     int // sessions finished since the view was opened
}

func newFocusModel(s *store.Store) focusModel {
	m := focusModel{
		store: s,
		state: focusIdle,
	}
	m.loadSettings()
	return m
}

func (f *focusModel) loadSettings() {
	f.duration = time.Duration(f.store.GetIntSetting(store.SettingFocusDuration, 1500)) * time.Second
	f.breakDuration = time.Duration(f.store.GetIntSetting(store.SettingBreakDuration, 300)) * time.Second
	if f.state == focusIdle {
		f.remaining = f.duration
	}
}

func (f *focusModel) setSize(w, h int) {
	f.width = w
	f.height = h
}

func (f focusModel) active() bool {
	return f.state == focusRunning || f.state == focusPaused
}

// elapsed is the focused time so far, excluding pauses.
func (f focusModel) elapsed() time.Duration {
	switch f.state {
	case focusRunning:
		return f.store.Now().Sub(f.startedAt) - f.pauseGap
	case focusPaused:
		return f.pausedAt.Sub(f.startedAt) - f.pauseGap
	}
	return 0
}

// open selects a task for the next countdown. A running countdown keeps its
// task.
func (f focusModel) open(t store.Task) (focusModel, tea.Cmd) {
	if f.active() {
		return f, infoStatus("Finish or stop the current session first")
	}
	task := t
	f.task = &task
	f.state = focusIdle
	f.loadSettings()
	f.remaining = f.duration
	return f, nil
}

func (f focusModel) update(msg tea.Msg) (focusModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		switch f.state {
		case focusRunning:
			f.remaining = f.duration - f.elapsed()
			if f.remaining <= 0 {
				return f.finish(true)
			}
		case focusBreak:
			if !f.store.Now().Before(f.breakEnd) {
				f.state = focusIdle
				f.remaining = f.duration
				return f, infoStatus("Break over \a")
			}
		}
		return f, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Start):
			if f.state == focusIdle || f.state == focusBreak {
				return f.begin()
			}
		case key.Matches(msg, keys.Pause):
			return f.toggle(), nil
		case key.Matches(msg, keys.Distraction):
			if f.active() {
				f.distractions++
			}
		case key.Matches(msg, keys.Stop):
			if f.active() {
				return f.finish(false)
			}
			if f.state == focusBreak {
				f.state = focusIdle
				f.remaining = f.duration
			}
		}
	}
	return f, nil
}

func (f focusModel) begin() (focusModel, tea.Cmd) {
	if f.task == nil {
		return f, infoStatus("Pick a task on the Tasks view first (p)")
	}
	if f.task.Status.Terminal() {
		return f, errStatus("Focus", fmt.Errorf("%q is already %s", f.task.Title, f.task.Status))
	}

	var cmd tea.Cmd
	if f.task.Status == store.StatusPending {
		updated, err := f.store.UpdateTaskStatus(f.task.ID, store.StatusInProgress)
		if err != nil {
			return f, errStatus("Start task", err)
		}
		f.task = updated
		cmd = func() tea.Msg { return taskChangedMsg{task: updated} }
	}

	f.loadSettings()
	f.state = focusRunning
	f.startedAt = f.store.Now()
	f.pauseGap = 0
	f.distractions = 0
	f.remaining = f.duration
	return f, cmd
}

func (f focusModel) toggle() focusModel {
	switch f.state {
	case focusRunning:
		f.state = focusPaused
		f.pausedAt = f.store.Now()
	case focusPaused:
		f.pauseGap += f.store.Now().Sub(f.pausedAt)
		f.state = focusRunning
	}
	return f
}

// finish records the session. completed is true when the countdown ran out.
func (f focusModel) finish(completed bool) (focusModel, tea.Cmd) {
	elapsed := f.elapsed()
	if completed {
		elapsed = f.duration
	}
	end := f.startedAt.Add(elapsed + f.pauseGap)

	session, err := f.store.CreateFocusSession(store.SessionDraft{
		TaskID:              f.task.ID,
		StartTime:           f.startedAt,
		EndTime:             &end,
		Duration:            int(elapsed / time.Minute),
		DistractionAttempts: f.distractions,
		Completed:           completed,
	})

	f.remaining = f.duration
	if completed {
		f.completed++
		f.state = focusBreak
		f.breakEnd = f.store.Now().Add(f.breakDuration)
	} else {
		f.state = focusIdle
	}

	if err != nil {
		return f, errStatus("Record session", err)
	}
	recorded := func() tea.Msg { return sessionRecordedMsg{session: session} }
	if completed {
		return f, tea.Batch(recorded, infoStatus("Session complete, take a break \a"))
	}
	return f, recorded
}

func (f focusModel) view() string {
	w := f.width - 4

	title := titleStyle.Render("Focus")
	taskLine := mutedStyle.Render("No task selected. Press 1, pick a task and press p.")
	if f.task != nil {
		taskLine = lipgloss.JoinHorizontal(lipgloss.Center,
			priorityBadge(f.task.Priority), " ",
			highlightStyle.Render(f.task.Title), " ",
			mutedStyle.Render("("+string(f.task.StrictnessLevel)+")"),
		)
	}

	var clock, label, controls string
	switch f.state {
	case focusIdle:
		clock = clockIdleStyle.Width(w - 6).Render(formatClock(f.duration))
		label = mutedStyle.Render(focusStateNames[f.state])
		controls = "s: start"
	case focusRunning:
		clock = clockRunningStyle.Width(w - 6).Render(formatClock(f.remaining))
		label = clockRunningStyle.Render(focusStateNames[f.state])
		controls = "space: pause  d: log distraction  x: stop"
	case focusPaused:
		clock = clockPausedStyle.Width(w - 6).Render(formatClock(f.remaining))
		label = clockPausedStyle.Render(focusStateNames[f.state])
		controls = "space: resume  x: stop"
	case focusBreak:
		left := f.breakEnd.Sub(f.store.Now())
		clock = clockBreakStyle.Width(w - 6).Render(formatClock(left))
		label = clockBreakStyle.Render(focusStateNames[f.state])
		controls = "s: skip break  x: end break"
	}

	stats := mutedStyle.Render(fmt.Sprintf("distractions %d  sessions %s", f.distractions, f.renderProgress()))

	content := lipgloss.JoinVertical(lipgloss.Center,
		title,
		"",
		taskLine,
		"",
		clock,
		label,
		"",
		stats,
		"",
		mutedStyle.Render(controls),
	)
	if f.active() {
		return activePanelStyle.Width(w).Render(content)
	}
	return panelStyle.Width(w).Render(content)
}

func (f focusModel) renderProgress() string {
	var parts []string
	for i := 0; i < f.completed; i++ {
		parts = append(parts, successStyle.Render("●"))
	}
	if f.active() {
		parts = append(parts, warningStyle.Render("◐"))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}
