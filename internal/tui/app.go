package tui

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/Vortex-404/task-enforcer/internal/export"
	"github.com/Vortex-404/task-enforcer/internal/store"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

var exportFormats = []string{"CSV", "JSON"}

// tabKeys[i] jumps to viewState(i).
var tabKeys = []key.Binding{keys.Tab1, keys.Tab2, keys.Tab3, keys.Tab4, keys.Tab5}

// App is the root Bubble Tea model.
type App struct {
	store     *store.Store
	log       *zap.Logger
	exportDir string
	width     int
	height    int

	activeView    viewState
	showHelp      bool
	exportPicking bool
	exportCursor  int

	tasks    tasksModel
	focus    focusModel
	reports  reportsModel
	sync     syncModel
	settings settingsModel

	help   help.Model
	status string
}

// NewApp builds the root model. Exports are written to the user's home
// directory. A nil logger discards log output.
func NewApp(s *store.Store, log *zap.Logger) App {
	if log == nil {
		log = zap.NewNop()
	}
	h := help.New()
	h.ShowAll = false

	dir := defaultOutDir()
	return App{
		store:      s,
		log:        log,
		exportDir:  dir,
		activeView: viewTasks,
		tasks:      newTasksModel(s),
		focus:      newFocusModel(s),
		reports:    newReportsModel(s),
		sync:       newSyncModel(s, dir),
		settings:   newSettingsModel(s),
		help:       h,
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(
		a.tasks.refresh(),
		tickCmd(),
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		contentHeight := a.height - 4 // header + footer
		a.tasks.setSize(a.width, contentHeight)
		a.focus.setSize(a.width, contentHeight)
		a.reports.setSize(a.width, contentHeight)
		a.sync.setSize(a.width, contentHeight)
		a.settings.setSize(a.width, contentHeight)
		return a, nil

	case tea.KeyMsg:
		if a.exportPicking {
			return a.updateExportPicker(msg)
		}

		// A view capturing input (e.g. a form) sees keys first.
		if a.isFormActive() {
			return a.updateActiveView(msg)
		}

		for i, b := range tabKeys {
			if key.Matches(msg, b) {
				return a.switchTo(viewState(i))
			}
		}

		switch {
		case key.Matches(msg, keys.Export):
			a.exportPicking = true
			a.exportCursor = 0
			return a, nil
		case key.Matches(msg, keys.Quit):
			if a.focus.active() {
				// Record the partial session before leaving.
				a.focus, _ = a.focus.finish(false)
			}
			return a, tea.Quit
		case key.Matches(msg, keys.Help):
			a.showHelp = !a.showHelp
			a.help.ShowAll = a.showHelp
			return a, nil
		case key.Matches(msg, keys.Tab):
			return a.switchTo((a.activeView + 1) % viewState(len(viewNames)))
		}

	case tickMsg:
		var cmd tea.Cmd
		a.focus, cmd = a.focus.update(msg)
		return a, tea.Batch(tickCmd(), cmd)

	case focusRequestMsg:
		var cmd tea.Cmd
		a.focus, cmd = a.focus.open(msg.task)
		a.activeView = viewFocus
		return a, cmd

	case taskChangedMsg:
		if msg.task != nil && a.focus.task != nil && a.focus.task.ID == msg.task.ID {
			t := *msg.task
			a.focus.task = &t
		}
		return a, a.tasks.refresh()

	case sessionRecordedMsg:
		a.log.Info("focus session recorded",
			zap.String("session_id", msg.session.ID),
			zap.String("task_id", msg.session.TaskID),
			zap.Int("minutes", msg.session.Duration),
			zap.Int("distractions", msg.session.DistractionAttempts),
			zap.Bool("completed", msg.session.Completed),
		)
		a.status = fmt.Sprintf("Recorded %s of focus", formatMinutes(msg.session.Duration))
		return a, a.tasks.refresh()

	case settingsSavedMsg:
		a.focus.loadSettings()
		a.status = "Settings saved"
		return a, nil

	case statusMsg:
		a.status = msg.text
		if msg.isError {
			a.log.Warn("action failed", zap.String("detail", msg.text))
		}
		return a, nil

	case exportDoneMsg:
		a.status = "Exported to " + msg.path
		a.exportPicking = false
		a.log.Info("export written", zap.String("path", msg.path))
		if a.activeView == viewSync {
			return a, a.sync.refresh()
		}
		return a, nil
	}

	return a.routeData(msg)
}

// routeData delivers data messages to the view that requested them, which
// may no longer be the active one.
func (a App) routeData(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg.(type) {
	case tasksDataMsg:
		a.tasks, cmd = a.tasks.update(msg)
	case reportsDataMsg:
		a.reports, cmd = a.reports.update(msg)
	case syncDataMsg:
		a.sync, cmd = a.sync.update(msg)
	case settingsDataMsg:
		a.settings, cmd = a.settings.update(msg)
	default:
		return a.updateActiveView(msg)
	}
	return a, cmd
}

func (a App) switchTo(v viewState) (tea.Model, tea.Cmd) {
	a.activeView = v
	return a, a.refreshCurrentView()
}

func (a App) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.activeView {
	case viewTasks:
		a.tasks, cmd = a.tasks.update(msg)
	case viewFocus:
		a.focus, cmd = a.focus.update(msg)
	case viewReports:
		a.reports, cmd = a.reports.update(msg)
	case viewSync:
		a.sync, cmd = a.sync.update(msg)
	case viewSettings:
		a.settings, cmd = a.settings.update(msg)
	}
	return a, cmd
}

func (a App) isFormActive() bool {
	switch a.activeView {
	case viewTasks:
		return a.tasks.formActive
	case viewSettings:
		return a.settings.formActive
	}
	return false
}

func (a App) refreshCurrentView() tea.Cmd {
	switch a.activeView {
	case viewTasks:
		return a.tasks.refresh()
	case viewReports:
		return a.reports.refresh()
	case viewSync:
		return a.sync.refresh()
	case viewSettings:
		return a.settings.refresh()
	}
	return nil
}

func (a App) View() string {
	if a.width == 0 {
		return "Loading..."
	}

	header := a.renderHeader()
	footer := a.renderFooter()

	var content string
	switch a.activeView {
	case viewTasks:
		content = a.tasks.view()
	case viewFocus:
		content = a.focus.view()
	case viewReports:
		content = a.reports.view()
	case viewSync:
		content = a.sync.view()
	case viewSettings:
		content = a.settings.view()
	}

	contentHeight := max(a.height-lipgloss.Height(header)-lipgloss.Height(footer), 1)

	if a.exportPicking {
		content = a.renderExportPicker()
	}

	content = lipgloss.NewStyle().
		Width(a.width).
		Height(contentHeight).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, header, content, footer)
}

func (a App) renderHeader() string {
	var tabs []string
	for i, name := range viewNames {
		if viewState(i) == a.activeView {
			tabs = append(tabs, activeTabStyle.Render(name))
		} else {
			tabs = append(tabs, inactiveTabStyle.Render(name))
		}
	}
	tabRow := lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...)

	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Render("strictfocus")
	gap := max(a.width-lipgloss.Width(title)-lipgloss.Width(tabRow)-4, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return headerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Bottom, title, spacer, tabRow),
	)
}

func (a App) renderFooter() string {
	helpView := a.help.View(keys)

	status := ""
	if a.status != "" {
		status = mutedStyle.Render(" " + a.status)
	}

	// Countdown indicator, visible from every view.
	clock := ""
	switch a.focus.state {
	case focusRunning:
		clock = successStyle.Render(" ● " + formatClock(a.focus.remaining))
	case focusPaused:
		clock = warningStyle.Render(" ⏸ " + formatClock(a.focus.remaining))
	}

	left := footerStyle.Render(helpView)
	right := clock + status

	gap := max(a.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.JoinHorizontal(lipgloss.Bottom, left, spacer, right)
}

func (a App) renderExportPicker() string {
	rows := []string{titleStyle.Render("Export tasks"), ""}
	for i, f := range exportFormats {
		cursor := "  "
		style := normalItemStyle
		if i == a.exportCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		rows = append(rows, style.Render(cursor+f))
	}
	rows = append(rows, "", mutedStyle.Render("  enter: export  esc: cancel"))

	return activePanelStyle.Width(a.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (a App) updateExportPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if a.exportCursor > 0 {
			a.exportCursor--
		}
	case key.Matches(msg, keys.Down):
		if a.exportCursor < len(exportFormats)-1 {
			a.exportCursor++
		}
	case key.Matches(msg, keys.Enter):
		a.exportPicking = false
		return a, a.doExport(a.exportCursor)
	case key.Matches(msg, keys.Back):
		a.exportPicking = false
	}
	return a, nil
}

func (a App) exportPath(format int) string {
	ext := "json"
	if format == 0 {
		ext = "csv"
	}
	name := fmt.Sprintf("strictfocus-export-%s.%s", a.store.Now().Format("2006-01-02"), ext)
	return filepath.Join(a.exportDir, name)
}

func (a App) doExport(format int) tea.Cmd {
	return func() tea.Msg {
		tasks, err := a.store.GetAllTasks()
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}

		path := a.exportPath(format)
		if format == 0 {
			err = export.TasksToCSV(tasks, path)
		} else {
			err = export.TasksToJSON(tasks, path)
		}
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Export error: %v", err), isError: true}
		}
		return exportDoneMsg{path: path}
	}
}
