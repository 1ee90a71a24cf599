package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/Vortex-404/task-enforcer/internal/store"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

type reportsModel struct {
	store  *store.Store
	width  int
	height int

	offset int // 7-day blocks back from today

	days      []store.DailyFocus
	streaks   []store.Streak
	stats     *store.TaskStats
	dailyGoal int

	chart barchart.Model
}

func newReportsModel(s *store.Store) reportsModel {
	return reportsModel{
		store: s,
		chart: barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	days      []store.DailyFocus
	streaks   []store.Streak
	stats     *store.TaskStats
	dailyGoal int
	err       error
}

func (r reportsModel) refresh() tea.Cmd {
	return func() tea.Msg {
		from, to := r.dateRange()
		days, err := r.store.GetDailyFocus(from, to)
		if err != nil {
			return reportsDataMsg{err: err}
		}
		streaks, err := r.store.GetAllStreaks()
		if err != nil {
			return reportsDataMsg{err: err}
		}
		stats, err := r.store.GetTaskStats(r.store.Now())
		if err != nil {
			return reportsDataMsg{err: err}
		}
		return reportsDataMsg{
			days:      days,
			streaks:   streaks,
			stats:     stats,
			dailyGoal: r.store.GetIntSetting(store.SettingDailyGoal, 120),
		}
	}
}

// dateRange covers the seven calendar days ending today, shifted back by
// offset weeks.
func (r reportsModel) dateRange() (time.Time, time.Time) {
	today := startOfDay(r.store.Now(), r.store.Location())
	end := today.AddDate(0, 0, 1-7*r.offset)
	return end.AddDate(0, 0, -7), end
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		if msg.err != nil {
			return r, errStatus("Load reports", msg.err)
		}
		r.days = msg.days
		r.streaks = msg.streaks
		r.stats = msg.stats
		r.dailyGoal = msg.dailyGoal
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		}
	}
	return r, nil
}

func (r *reportsModel) buildChart() {
	chartWidth := max(r.width-8, 20)
	chartHeight := 10
	if r.height > 30 {
		chartHeight = 14
	}
	r.chart = barchart.New(chartWidth, chartHeight)

	byDate := make(map[string]store.DailyFocus, len(r.days))
	for _, d := range r.days {
		byDate[d.Date] = d
	}

	under := lipgloss.NewStyle().Foreground(colorSecondary)
	met := lipgloss.NewStyle().Foreground(colorSuccess)

	from, to := r.dateRange()
	var bars []barchart.BarData
	for d := from; d.Before(to); d = d.AddDate(0, 0, 1) {
		df := byDate[d.Format("2006-01-02")]
		style := under
		if r.dailyGoal > 0 && df.Minutes >= r.dailyGoal {
			style = met
		}
		bars = append(bars, barchart.BarData{
			Label: d.Format("Mon 02"),
			Values: []barchart.BarValue{{
				Name:  "focus",
				Value: float64(df.Minutes),
				Style: style,
			}},
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	from, to := r.dateRange()
	dateLabel := mutedStyle.Render(fmt.Sprintf("%s to %s", from.Format("Jan 02"), to.AddDate(0, 0, -1).Format("Jan 02, 2006")))
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Focus minutes"), "  ", dateLabel,
	)

	goal := mutedStyle.Render(fmt.Sprintf("  daily goal %s", formatMinutes(r.dailyGoal)))
	nav := mutedStyle.Render("  ←/→: previous/next week")

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), goal, "",
			r.renderStreaks(), "",
			r.renderStats(), "",
			nav,
		),
	)
}

func (r reportsModel) renderStreaks() string {
	rows := []string{titleStyle.Render("Streaks")}
	if len(r.streaks) == 0 {
		return strings.Join(append(rows, mutedStyle.Render("  No streaks yet")), "\n")
	}
	now := r.store.Now()
	for _, st := range r.streaks {
		verified := ""
		if st.AIValidated && st.ValidationScore != nil {
			verified = successStyle.Render(fmt.Sprintf(" verified %.0f%%", *st.ValidationScore*100))
		}
		rows = append(rows, fmt.Sprintf("  %-12s %s  %s  %s%s",
			st.Type,
			highlightStyle.Render(fmt.Sprintf("%d %s", st.CurrentCount, humanize.PluralWord(st.CurrentCount, "day", ""))),
			mutedStyle.Render(fmt.Sprintf("best %d", st.BestCount)),
			mutedStyle.Render("last "+humanize.RelTime(st.LastActivityDate, now, "ago", "from now")),
			verified,
		))
	}
	return strings.Join(rows, "\n")
}

func (r reportsModel) renderStats() string {
	if r.stats == nil {
		return ""
	}
	st := r.stats
	overdue := mutedStyle.Render(fmt.Sprintf("%d overdue", st.OverdueTasks))
	if st.OverdueTasks > 0 {
		overdue = errorStyle.Render(fmt.Sprintf("%d overdue", st.OverdueTasks))
	}
	return strings.Join([]string{
		titleStyle.Render("Tasks"),
		fmt.Sprintf("  %s total  %s done  %s in progress  %s",
			humanize.Comma(int64(st.TotalTasks)),
			successStyle.Render(humanize.Comma(int64(st.CompletedTasks))),
			warningStyle.Render(humanize.Comma(int64(st.InProgressTasks))),
			overdue,
		),
		mutedStyle.Render(fmt.Sprintf("  completion %.0f%%  focused %s", st.CompletionRate, formatMinutes(st.TotalFocusMinutes))),
	}, "\n")
}
