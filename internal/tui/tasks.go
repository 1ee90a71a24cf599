package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Vortex-404/task-enforcer/internal/store"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const deadlineLayout = "2006-01-02 15:04"

type tasksModel struct {
	store  *store.Store
	width  int
	height int

	tasks  []store.Task
	cursor int

	formActive bool
	form       *huh.Form
	editingID  string // empty while creating

	// Form field pointers (survive value copies)
	formTitle       *string
	formDescription *string
	formPriority    *store.Priority
	formStrictness  *store.StrictnessLevel
	formDeadline    *string
	formEstimate    *string
	formTags        *string
}

func newTasksModel(s *store.Store) tasksModel {
	title, desc, deadline, estimate, tags := "", "", "", "", ""
	priority := store.PriorityMedium
	strictness := store.StrictnessStandard
	return tasksModel{
		store:           s,
		formTitle:       &title,
		formDescription: &desc,
		formPriority:    &priority,
		formStrictness:  &strictness,
		formDeadline:    &deadline,
		formEstimate:    &estimate,
		formTags:        &tags,
	}
}

func (m *tasksModel) setSize(w, h int) {
	m.width = w
	m.height = h
}

type tasksDataMsg struct {
	tasks []store.Task
	err   error
}

func (m tasksModel) refresh() tea.Cmd {
	return func() tea.Msg {
		tasks, err := m.store.GetAllTasks()
		return tasksDataMsg{tasks: tasks, err: err}
	}
}

func (m tasksModel) selected() (store.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.tasks) {
		return store.Task{}, false
	}
	return m.tasks[m.cursor], true
}

func (m tasksModel) update(msg tea.Msg) (tasksModel, tea.Cmd) {
	if m.formActive && m.form != nil {
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tasksDataMsg:
		if msg.err != nil {
			return m, errStatus("Load tasks", msg.err)
		}
		m.tasks = msg.tasks
		if m.cursor >= len(m.tasks) {
			m.cursor = max(0, len(m.tasks)-1)
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateList(msg)
	}
	return m, nil
}

func (m tasksModel) updateList(msg tea.KeyMsg) (tasksModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.tasks)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.New):
		return m.showForm()
	case key.Matches(msg, keys.Edit):
		if t, ok := m.selected(); ok {
			return m.showEditForm(t)
		}
	case key.Matches(msg, keys.Start):
		return m, m.setStatus(store.StatusInProgress)
	case key.Matches(msg, keys.Complete):
		return m, m.setStatus(store.StatusCompleted)
	case key.Matches(msg, keys.Validate):
		return m, m.setStatus(store.StatusCompleted, store.Validated())
	case key.Matches(msg, keys.Fail):
		return m, m.setStatus(store.StatusFailed)
	case key.Matches(msg, keys.Abandon):
		return m, m.setStatus(store.StatusAbandoned)
	case key.Matches(msg, keys.Reset):
		return m, m.setStatus(store.StatusPending)
	case key.Matches(msg, keys.Delete):
		return m, m.deleteSelected()
	case key.Matches(msg, keys.Focus), key.Matches(msg, keys.Enter):
		if t, ok := m.selected(); ok {
			return m, func() tea.Msg { return focusRequestMsg{task: t} }
		}
	}
	return m, nil
}

func (m tasksModel) setStatus(status store.TaskStatus, opts ...store.StatusOption) tea.Cmd {
	t, ok := m.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		updated, err := m.store.UpdateTaskStatus(t.ID, status, opts...)
		if err != nil {
			if store.HasCode(err, store.CodeInvalidTransition) {
				return statusMsg{text: fmt.Sprintf("Cannot move %q from %s to %s", t.Title, t.Status, status), isError: true}
			}
			return statusMsg{text: fmt.Sprintf("Update task: %v", err), isError: true}
		}
		return taskChangedMsg{task: updated}
	}
}

func (m tasksModel) deleteSelected() tea.Cmd {
	t, ok := m.selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		if err := m.store.DeleteTask(t.ID); err != nil {
			return statusMsg{text: fmt.Sprintf("Delete task: %v", err), isError: true}
		}
		return taskChangedMsg{}
	}
}

func (m tasksModel) showForm() (tasksModel, tea.Cmd) {
	*m.formTitle = ""
	*m.formDescription = ""
	*m.formPriority = store.Priority(m.defaultPriority())
	*m.formStrictness = store.StrictnessStandard
	*m.formDeadline = m.store.Now().In(m.store.Location()).Add(24 * time.Hour).Format(deadlineLayout)
	*m.formEstimate = "25"
	*m.formTags = ""

	m.editingID = ""
	return m.openForm("New Task")
}

// showEditForm opens the task form filled with t's current values.
func (m tasksModel) showEditForm(t store.Task) (tasksModel, tea.Cmd) {
	*m.formTitle = t.Title
	*m.formDescription = t.Description
	*m.formPriority = t.Priority
	*m.formStrictness = t.StrictnessLevel
	*m.formDeadline = t.Deadline.In(m.store.Location()).Format(deadlineLayout)
	*m.formEstimate = strconv.Itoa(t.EstimatedDuration)
	*m.formTags = strings.Join(t.Tags, ", ")

	m.editingID = t.ID
	return m.openForm("Edit Task")
}

func (m tasksModel) openForm(title string) (tasksModel, tea.Cmd) {
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Title").Value(m.formTitle).Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("title is required")
				}
				return nil
			}),
			huh.NewText().Title("Description").Value(m.formDescription),
			huh.NewSelect[store.Priority]().Title("Priority").
				Options(
					huh.NewOption("Low", store.PriorityLow),
					huh.NewOption("Medium", store.PriorityMedium),
					huh.NewOption("High", store.PriorityHigh),
					huh.NewOption("Critical", store.PriorityCritical),
				).Value(m.formPriority),
			huh.NewSelect[store.StrictnessLevel]().Title("Strictness").
				Options(
					huh.NewOption("Standard", store.StrictnessStandard),
					huh.NewOption("Military", store.StrictnessMilitary),
					huh.NewOption("Elite", store.StrictnessElite),
					huh.NewOption("Maximum", store.StrictnessMaximum),
				).Value(m.formStrictness),
		).Title(title),
		huh.NewGroup(
			huh.NewInput().Title("Deadline (YYYY-MM-DD HH:MM)").Value(m.formDeadline).Validate(func(s string) error {
				_, err := parseDeadline(s, m.store.Location())
				return err
			}),
			huh.NewInput().Title("Estimated minutes").Value(m.formEstimate).Validate(func(s string) error {
				_, err := parseEstimate(s)
				return err
			}),
			huh.NewInput().Title("Tags (comma separated)").Value(m.formTags),
		).Title("Schedule"),
	).WithShowHelp(true).WithShowErrors(true)

	m.formActive = true
	return m, m.form.Init()
}

func (m tasksModel) defaultPriority() string {
	v, err := m.store.GetSetting(store.SettingDefaultPriority)
	if err != nil || !store.Priority(v).Valid() {
		return string(store.PriorityMedium)
	}
	return v
}

func (m tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			m.formActive = false
			m.form = nil
			return m, nil
		}
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.formActive = false
		m.form = nil
		if m.editingID != "" {
			return m, m.saveEdit(m.editingID)
		}
		return m, m.createTask()
	}
	return m, cmd
}

func (m tasksModel) createTask() tea.Cmd {
	d, err := m.draft()
	if err != nil {
		return errStatus("New task", err)
	}
	return func() tea.Msg {
		t, err := m.store.CreateTask(d)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Create task: %v", err), isError: true}
		}
		return taskChangedMsg{task: t}
	}
}

func (m tasksModel) saveEdit(id string) tea.Cmd {
	d, err := m.draft()
	if err != nil {
		return errStatus("Edit task", err)
	}
	patch := store.TaskPatch{
		Title:             &d.Title,
		Description:       &d.Description,
		Priority:          &d.Priority,
		StrictnessLevel:   &d.StrictnessLevel,
		Deadline:          &d.Deadline,
		EstimatedDuration: &d.EstimatedDuration,
		Tags:              &d.Tags,
	}
	return func() tea.Msg {
		t, err := m.store.UpdateTask(id, patch)
		if err != nil {
			return statusMsg{text: fmt.Sprintf("Edit task: %v", err), isError: true}
		}
		return taskChangedMsg{task: t}
	}
}

func (m tasksModel) draft() (store.TaskDraft, error) {
	deadline, err := parseDeadline(*m.formDeadline, m.store.Location())
	if err != nil {
		return store.TaskDraft{}, err
	}
	estimate, err := parseEstimate(*m.formEstimate)
	if err != nil {
		return store.TaskDraft{}, err
	}
	return store.TaskDraft{
		Title:             strings.TrimSpace(*m.formTitle),
		Description:       strings.TrimSpace(*m.formDescription),
		Priority:          *m.formPriority,
		StrictnessLevel:   *m.formStrictness,
		Deadline:          deadline,
		EstimatedDuration: estimate,
		Tags:              parseTags(*m.formTags),
	}, nil
}

// parseDeadline accepts a date with or without a time of day. A bare date
// means the end of that day.
func parseDeadline(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(deadlineLayout, s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t.Add(24*time.Hour - time.Minute), nil
	}
	return time.Time{}, fmt.Errorf("deadline must look like %s", deadlineLayout)
}

func parseEstimate(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, errors.New("estimate must be a positive number of minutes")
	}
	return n, nil
}

func parseTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func focusMinutes(t store.Task) int {
	total := 0
	for _, fs := range t.FocusSessions {
		total += fs.Duration
	}
	return total
}

func (m tasksModel) view() string {
	w := m.width - 4

	if m.formActive && m.form != nil {
		return activePanelStyle.Width(w).Render(m.form.View())
	}

	title := titleStyle.Render("Tasks")
	if len(m.tasks) == 0 {
		return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No tasks yet. Press n to add one."),
		))
	}

	now := m.store.Now()
	rows := []string{title, ""}
	for i, t := range m.tasks {
		cursor := "  "
		style := normalItemStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		if t.Status.Terminal() && i != m.cursor {
			style = doneItemStyle
		}

		due := humanize.RelTime(t.Deadline, now, "overdue", "left")
		if t.Deadline.Before(now) && !t.Status.Terminal() {
			due = errorStyle.Render(due)
		} else {
			due = mutedStyle.Render(due)
		}

		line := fmt.Sprintf("%s%s %-32s %-12s %s  %s",
			cursor,
			priorityBadge(t.Priority),
			style.Render(truncate(t.Title, 32)),
			statusLabel(t.Status),
			due,
			mutedStyle.Render(fmt.Sprintf("%s / %s", formatMinutes(focusMinutes(t)), formatMinutes(t.EstimatedDuration))),
		)
		rows = append(rows, line)
	}

	if t, ok := m.selected(); ok {
		rows = append(rows, "", m.renderDetail(t))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (m tasksModel) renderDetail(t store.Task) string {
	parts := []string{
		highlightStyle.Render(t.Title),
		mutedStyle.Render(fmt.Sprintf("%s priority, %s strictness, due %s",
			t.Priority, t.StrictnessLevel, t.Deadline.In(m.store.Location()).Format(deadlineLayout))),
	}
	if t.Description != "" {
		parts = append(parts, t.Description)
	}
	if len(t.Tags) > 0 {
		parts = append(parts, mutedStyle.Render("#"+strings.Join(t.Tags, " #")))
	}
	if n := len(t.FocusSessions); n > 0 {
		distractions := 0
		for _, fs := range t.FocusSessions {
			distractions += fs.DistractionAttempts
		}
		parts = append(parts, mutedStyle.Render(fmt.Sprintf("%d %s, %d distractions",
			n, humanize.PluralWord(n, "session", ""), distractions)))
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
