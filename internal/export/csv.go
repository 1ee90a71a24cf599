package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Vortex-404/task-enforcer/internal/store"
)

var csvHeader = []string{
	"ID", "Title", "Priority", "Strictness", "Status", "Deadline", "Estimated (min)",
	"Focus (min)", "Focus", "Sessions", "Distractions", "Tags", "Created", "Started", "Completed",
}

func TasksToCSV(tasks []store.Task, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, t := range tasks {
		sum := summarize(t)
		row := []string{
			t.ID,
			t.Title,
			string(t.Priority),
			string(t.StrictnessLevel),
			string(t.Status),
			formatTime(&t.Deadline),
			strconv.Itoa(t.EstimatedDuration),
			strconv.Itoa(sum.minutes),
			formatDuration(sum.minutes),
			strconv.Itoa(sum.sessions),
			strconv.Itoa(sum.distractions),
			strings.Join(t.Tags, ";"),
			formatTime(&t.CreatedAt),
			formatTime(t.StartedAt),
			formatTime(t.CompletedAt),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

type sessionSummary struct {
	minutes      int
	sessions     int
	distractions int
}

func summarize(t store.Task) sessionSummary {
	var sum sessionSummary
	for _, fs := range t.FocusSessions {
		sum.minutes += fs.Duration
		sum.sessions++
		sum.distractions += fs.DistractionAttempts
	}
	return sum
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}

// formatDuration renders minutes as HH:MM.
func formatDuration(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
