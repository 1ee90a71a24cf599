package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Vortex-404/task-enforcer/internal/store"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var settingLabels = map[string]string{
	store.SettingFocusDuration:   "Focus length",
	store.SettingBreakDuration:   "Break length",
	store.SettingDailyGoal:       "Daily focus goal",
	store.SettingDefaultPriority: "Default priority",
}

type settingsModel struct {
	store  *store.Store
	width  int
	height int

	settings   []store.Setting
	formActive bool
	form       *huh.Form

	// Form values as pointers (survive value copies)
	focusMinutes    *string
	breakMinutes    *string
	dailyGoal       *string
	defaultPriority *string
}

func newSettingsModel(s *store.Store) settingsModel {
	fm, bm, dg, dp := "", "", "", ""
	return settingsModel{
		store:           s,
		focusMinutes:    &fm,
		breakMinutes:    &bm,
		dailyGoal:       &dg,
		defaultPriority: &dp,
	}
}

func (s *settingsModel) setSize(w, h int) {
	s.width = w
	s.height = h
}

type settingsDataMsg struct {
	settings []store.Setting
	err      error
}

// settingsSavedMsg tells other views to reload values they cache.
type settingsSavedMsg struct{}

func (s settingsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		settings, err := s.store.GetAllSettings()
		return settingsDataMsg{settings: settings, err: err}
	}
}

func (s settingsModel) update(msg tea.Msg) (settingsModel, tea.Cmd) {
	if s.formActive && s.form != nil {
		return s.updateForm(msg)
	}

	switch msg := msg.(type) {
	case settingsDataMsg:
		if msg.err != nil {
			return s, errStatus("Load settings", msg.err)
		}
		s.settings = msg.settings
		return s, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Enter) {
			return s.showForm()
		}
	}
	return s, nil
}

func positiveInt(v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return errors.New("enter a whole number above zero")
	}
	return nil
}

func (s settingsModel) showForm() (settingsModel, tea.Cmd) {
	*s.focusMinutes = strconv.Itoa(s.store.GetIntSetting(store.SettingFocusDuration, 1500) / 60)
	*s.breakMinutes = strconv.Itoa(s.store.GetIntSetting(store.SettingBreakDuration, 300) / 60)
	*s.dailyGoal = strconv.Itoa(s.store.GetIntSetting(store.SettingDailyGoal, 120))
	*s.defaultPriority = s.getVal(store.SettingDefaultPriority, string(store.PriorityMedium))

	s.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Focus length (min)").Value(s.focusMinutes).Validate(positiveInt),
			huh.NewInput().Title("Break length (min)").Value(s.breakMinutes).Validate(positiveInt),
		).Title("Focus"),
		huh.NewGroup(
			huh.NewInput().Title("Daily focus goal (min)").Value(s.dailyGoal).Validate(positiveInt),
			huh.NewSelect[string]().Title("Default priority for new tasks").
				Options(
					huh.NewOption("Low", string(store.PriorityLow)),
					huh.NewOption("Medium", string(store.PriorityMedium)),
					huh.NewOption("High", string(store.PriorityHigh)),
					huh.NewOption("Critical", string(store.PriorityCritical)),
				).Value(s.defaultPriority),
		).Title("Tasks"),
	).WithShowHelp(true).WithShowErrors(true)

	s.formActive = true
	return s, s.form.Init()
}

func (s settingsModel) updateForm(msg tea.Msg) (settingsModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			s.formActive = false
			s.form = nil
			return s, nil
		}
	}

	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	if s.form.State == huh.StateCompleted {
		s.formActive = false
		s.form = nil
		if err := s.saveSettings(); err != nil {
			return s, errStatus("Save settings", err)
		}
		return s, tea.Batch(s.refresh(), func() tea.Msg { return settingsSavedMsg{} })
	}

	return s, cmd
}

func (s settingsModel) saveSettings() error {
	values := map[string]string{
		store.SettingFocusDuration:   minToSecs(*s.focusMinutes),
		store.SettingBreakDuration:   minToSecs(*s.breakMinutes),
		store.SettingDailyGoal:       strings.TrimSpace(*s.dailyGoal),
		store.SettingDefaultPriority: *s.defaultPriority,
	}
	for k, v := range values {
		if err := s.store.SetSetting(k, v); err != nil {
			return err
		}
	}
	return nil
}

func (s settingsModel) getVal(k, fallback string) string {
	v, err := s.store.GetSetting(k)
	if err != nil {
		return fallback
	}
	return v
}

func (s settingsModel) view() string {
	w := s.width - 4
	title := titleStyle.Render("Settings")

	if s.formActive && s.form != nil {
		return activePanelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", s.form.View()),
		)
	}

	rows := []string{title, ""}
	for _, setting := range s.settings {
		name, ok := settingLabels[setting.Key]
		if !ok {
			name = setting.Key
		}
		label := lipgloss.NewStyle().Width(24).Render(name)
		value := highlightStyle.Render(formatSettingValue(setting.Key, setting.Value))
		rows = append(rows, fmt.Sprintf("  %s %s", label, value))
	}
	rows = append(rows, "", mutedStyle.Render("Press enter to edit settings"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func formatSettingValue(k, v string) string {
	switch k {
	case store.SettingFocusDuration, store.SettingBreakDuration:
		if secs, err := strconv.Atoi(v); err == nil {
			return fmt.Sprintf("%d min", secs/60)
		}
	case store.SettingDailyGoal:
		if mins, err := strconv.Atoi(v); err == nil {
			return formatMinutes(mins) + " per day"
		}
	}
	return v
}

func minToSecs(s string) string {
	if mins, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return strconv.Itoa(mins * 60)
	}
	return s
}
