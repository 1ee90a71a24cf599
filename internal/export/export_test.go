package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Vortex-404/task-enforcer/internal/store"
)

func sampleTasks() []store.Task {
	now := time.Now().UTC()
	started := now.Add(-2 * time.Hour)
	completed := now.Add(-time.Hour)

	return []store.Task{
		{
			ID:                "t-1",
			Title:             "Write report",
			Description:       "quarterly",
			Priority:          store.PriorityHigh,
			StrictnessLevel:   store.StrictnessMilitary,
			Deadline:          now.Add(24 * time.Hour),
			EstimatedDuration: 90,
			Status:            store.StatusCompleted,
			Tags:              []string{"work", "q3"},
			CreatedAt:         now.Add(-48 * time.Hour),
			StartedAt:         &started,
			CompletedAt:       &completed,
			FocusSessions: []store.FocusSession{
				{ID: "s-1", TaskID: "t-1", StartTime: started, Duration: 50, DistractionAttempts: 2},
				{ID: "s-2", TaskID: "t-1", StartTime: started.Add(time.Hour), Duration: 25, DistractionAttempts: 1},
			},
		},
		{
			ID:                "t-2",
			Title:             "Groceries",
			Priority:          store.PriorityLow,
			StrictnessLevel:   store.StrictnessStandard,
			Deadline:          now.Add(48 * time.Hour),
			EstimatedDuration: 30,
			Status:            store.StatusPending,
			CreatedAt:         now,
		},
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	return records
}

// ============================================================
// CSV
// ============================================================

func TestTasksToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.csv")
	if err := TasksToCSV(sampleTasks(), path); err != nil {
		t.Fatalf("TasksToCSV: %v", err)
	}

	records := readCSV(t, path)
	if len(records) != 3 {
		t.Fatalf("expected 3 rows (1 header + 2 data), got %d", len(records))
	}
	for i, h := range csvHeader {
		if records[0][i] != h {
			t.Fatalf("header[%d] = %q, want %q", i, records[0][i], h)
		}
	}

	row := records[1]
	if row[0] != "t-1" || row[1] != "Write report" || row[2] != "high" || row[4] != "completed" {
		t.Fatalf("unexpected row: %v", row)
	}
	if row[7] != "75" || row[8] != "01:15" {
		t.Fatalf("focus = %q / %q, want 75 / 01:15", row[7], row[8])
	}
	if row[9] != "2" || row[10] != "3" {
		t.Fatalf("sessions/distractions = %q/%q", row[9], row[10])
	}
	if row[11] != "work;q3" {
		t.Fatalf("tags = %q", row[11])
	}

	pending := records[2]
	if pending[13] != "" || pending[14] != "" {
		t.Fatalf("unstarted task should have empty start/completion, got %q %q", pending[13], pending[14])
	}
}

func TestTasksToCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := TasksToCSV(nil, path); err != nil {
		t.Fatal(err)
	}
	if records := readCSV(t, path); len(records) != 1 {
		t.Fatalf("expected header only, got %d rows", len(records))
	}
}

func TestTasksToCSVBadPath(t *testing.T) {
	if err := TasksToCSV(nil, "/nonexistent/dir/file.csv"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestTasksToCSVSpecialCharacters(t *testing.T) {
	tasks := []store.Task{{
		ID:        "t",
		Title:     `Call "Bob", then Alice`,
		Deadline:  time.Now(),
		CreatedAt: time.Now(),
	}}
	path := filepath.Join(t.TempDir(), "special.csv")
	if err := TasksToCSV(tasks, path); err != nil {
		t.Fatal(err)
	}
	records := readCSV(t, path)
	if records[1][1] != `Call "Bob", then Alice` {
		t.Fatalf("title mangled: %q", records[1][1])
	}
}

// ============================================================
// JSON
// ============================================================

func TestTasksToJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	if err := TasksToJSON(sampleTasks(), path); err != nil {
		t.Fatalf("TasksToJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var result jsonExport
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if result.Count != 2 || len(result.Tasks) != 2 {
		t.Fatalf("count = %d, tasks = %d", result.Count, len(result.Tasks))
	}
	if _, err := time.Parse(time.RFC3339, result.ExportedAt); err != nil {
		t.Fatalf("exported_at is not RFC3339: %q", result.ExportedAt)
	}

	first := result.Tasks[0]
	if first.FocusMinutes != 75 || first.Sessions != 2 || first.DistractionCount != 3 {
		t.Fatalf("session totals = %+v", first)
	}
	if _, err := time.Parse(time.RFC3339, first.CompletedAt); err != nil {
		t.Fatalf("completed_at = %q", first.CompletedAt)
	}
	if result.Tasks[1].StartedAt != "" {
		t.Fatal("unstarted task should omit started_at")
	}
}

func TestTasksToJSONEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := TasksToJSON(nil, path); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"tasks": []`) {
		t.Fatalf("empty export should carry an empty array: %s", data)
	}
}

func TestTasksToJSONBadPath(t *testing.T) {
	if err := TasksToJSON(nil, "/nonexistent/dir/file.json"); err == nil {
		t.Fatal("expected error for bad path")
	}
}

func TestPendingToJSON(t *testing.T) {
	desc := "x"
	pending := &store.PendingSync{
		Tasks: []store.TaskRow{{
			ID: "t-1", Title: "a", Description: &desc, Priority: store.PriorityLow,
			LastModified: 1700000000000, SyncStatus: store.SyncPending,
		}},
	}
	path := filepath.Join(t.TempDir(), "outbox.json")
	if err := PendingToJSON(pending, path); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	var result pendingExport
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(result.Tasks) != 1 || result.Tasks[0].LastModified != 1700000000000 {
		t.Fatalf("tasks = %+v", result.Tasks)
	}
	if result.Sessions == nil || len(result.Sessions) != 0 {
		t.Fatal("sessions should be an empty array")
	}
	if !strings.Contains(string(data), `"syncStatus": "pending"`) {
		t.Fatalf("rows should keep their persisted field names: %s", data)
	}
}

func TestTasksToFilePicksFormat(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out.CSV")
	jsonPath := filepath.Join(dir, "out.json")

	if err := TasksToFile(sampleTasks(), csvPath); err != nil {
		t.Fatal(err)
	}
	if err := TasksToFile(sampleTasks(), jsonPath); err != nil {
		t.Fatal(err)
	}

	csvData, _ := os.ReadFile(csvPath)
	if !strings.HasPrefix(string(csvData), "ID,Title") {
		t.Fatalf("expected CSV, got %q", csvData[:20])
	}
	jsonData, _ := os.ReadFile(jsonPath)
	if !strings.HasPrefix(string(jsonData), "{") {
		t.Fatal("expected JSON")
	}
}

// ============================================================
// formatDuration (internal helper)
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "00:00"},
		{1, "00:01"},
		{60, "01:00"},
		{75, "01:15"},
		{1440, "24:00"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.minutes); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}
