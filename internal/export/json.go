package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Vortex-404/task-enforcer/internal/store"
)

type jsonExport struct {
	ExportedAt string     `json:"exported_at"`
	Count      int        `json:"count"`
	Tasks      []jsonTask `json:"tasks"`
}

type jsonTask struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Priority         string   `json:"priority"`
	StrictnessLevel  string   `json:"strictness_level"`
	Status           string   `json:"status"`
	Deadline         string   `json:"deadline"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	FocusMinutes     int      `json:"focus_minutes"`
	Focus            string   `json:"focus"`
	Sessions         int      `json:"sessions"`
	DistractionCount int      `json:"distractions"`
	Tags             []string `json:"tags,omitempty"`
	CreatedAt        string   `json:"created_at"`
	StartedAt        string   `json:"started_at,omitempty"`
	CompletedAt      string   `json:"completed_at,omitempty"`
}

func TasksToJSON(tasks []store.Task, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Count:      len(tasks),
		Tasks:      []jsonTask{},
	}

	for _, t := range tasks {
		sum := summarize(t)
		export.Tasks = append(export.Tasks, jsonTask{
			ID:               t.ID,
			Title:            t.Title,
			Description:      t.Description,
			Priority:         string(t.Priority),
			StrictnessLevel:  string(t.StrictnessLevel),
			Status:           string(t.Status),
			Deadline:         formatTime(&t.Deadline),
			EstimatedMinutes: t.EstimatedDuration,
			FocusMinutes:     sum.minutes,
			Focus:            formatDuration(sum.minutes),
			Sessions:         sum.sessions,
			DistractionCount: sum.distractions,
			Tags:             t.Tags,
			CreatedAt:        formatTime(&t.CreatedAt),
			StartedAt:        formatTime(t.StartedAt),
			CompletedAt:      formatTime(t.CompletedAt),
		})
	}

	return writeJSON(export, path)
}

type pendingExport struct {
	ExportedAt string             `json:"exported_at"`
	Tasks      []store.TaskRow    `json:"tasks"`
	Sessions   []store.SessionRow `json:"sessions"`
}

// PendingToJSON writes the sync outbox in its persisted row shape, ready for
// a transport to push.
func PendingToJSON(p *store.PendingSync, path string) error {
	export := pendingExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Tasks:      []store.TaskRow{},
		Sessions:   []store.SessionRow{},
	}
	if p != nil {
		export.Tasks = append(export.Tasks, p.Tasks...)
		export.Sessions = append(export.Sessions, p.Sessions...)
	}
	return writeJSON(export, path)
}

// TasksToFile picks CSV or JSON from the file extension.
func TasksToFile(tasks []store.Task, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return TasksToCSV(tasks, path)
	}
	return TasksToJSON(tasks, path)
}

func writeJSON(v any, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
