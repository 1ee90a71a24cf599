package store

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeClock is a settable Clock for day-boundary tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Set(t time.Time) { c.now = t }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := NewMemory(opts...)
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// newClockedStore returns a store in UTC driven by a fake clock starting at start.
func newClockedStore(t *testing.T, start time.Time) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: start}
	return newTestStore(t, WithClock(clock), WithLocation(time.UTC)), clock
}

func draft(title string, p Priority) TaskDraft {
	return TaskDraft{
		Title:             title,
		Priority:          p,
		StrictnessLevel:   StrictnessStandard,
		Deadline:          time.Date(2030, 1, 2, 17, 0, 0, 0, time.UTC),
		EstimatedDuration: 30,
	}
}

func mustCreateTask(t *testing.T, s *Store, d TaskDraft) *Task {
	t.Helper()
	task, err := s.CreateTask(d)
	if err != nil {
		t.Fatalf("create task %q: %v", d.Title, err)
	}
	return task
}

// ============================================================
// Store initialization
// ============================================================

func TestNewMemory(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var version int
	s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if version != currentVersion {
		t.Fatalf("expected user_version %d, got %d", currentVersion, version)
	}
}

func TestNewWithPath(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/sub/strictfocus.db"
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	task := mustCreateTask(t, s, draft("persisted", PriorityLow))
	s.Close()

	s2, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	got, err := s2.GetTask(task.ID)
	if err != nil {
		t.Fatalf("task lost across reopen: %v", err)
	}
	if got.Title != "persisted" {
		t.Fatalf("title = %q", got.Title)
	}
}

func TestPragmasConfigured(t *testing.T) {
	s := newTestStore(t)

	var fk int
	s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if fk != 1 {
		t.Fatalf("expected foreign_keys=1, got %d", fk)
	}
}

func TestSchemaMigrationIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.migrate(); err != nil {
		t.Fatalf("second schema migration failed: %v", err)
	}
}

func TestSchemaUpgradeFromV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	old := &Store{db: db, log: zap.NewNop()}
	if err := old.migrateV1(); err != nil {
		t.Fatal(err)
	}
	db.Exec(`PRAGMA user_version = 1`)
	_, err = db.Exec(`INSERT INTO streaks (id, type, current_count, best_count, last_activity_date,
		ai_validated, validation_score, created_at, last_modified) VALUES ('s1', 'focus', 3, 5, 1, 1, 0.5, 1, 1)`)
	if err != nil {
		t.Fatal(err)
	}
	db.Close()

	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	st, err := s.GetStreak(StreakFocus)
	if err != nil {
		t.Fatal(err)
	}
	if st == nil || st.CurrentCount != 3 || st.BestCount != 5 || *st.ValidationScore != 0.5 {
		t.Fatalf("streak after upgrade = %+v", st)
	}
	if st.ValidationQuestions != nil || st.ValidationAnswers != nil {
		t.Fatalf("upgraded rows should have no questions: %+v", st)
	}
}

// ============================================================
// Record codec
// ============================================================

func TestCodecRoundTrip(t *testing.T) {
	started := time.Date(2025, 3, 4, 9, 15, 30, 123456789, time.UTC)
	completed := started.Add(47 * time.Minute)
	task := Task{
		ID:                "t-1",
		Title:             "Write report",
		Description:       "quarterly numbers",
		Priority:          PriorityCritical,
		StrictnessLevel:   StrictnessElite,
		Deadline:          time.Date(2025, 3, 5, 17, 0, 0, 0, time.UTC),
		EstimatedDuration: 60,
		Status:            StatusCompleted,
		Tags:              []string{"work", "q1"},
		CreatedAt:         time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC),
		StartedAt:         &started,
		CompletedAt:       &completed,
		FocusSessions:     []FocusSession{{ID: "s-1", TaskID: "t-1"}},
	}
	now := time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC)

	row := ToPersistedTask(task, now)
	if row.LastModified != now.UnixMilli() {
		t.Fatalf("LastModified = %d, want %d", row.LastModified, now.UnixMilli())
	}
	if row.SyncStatus != SyncPending {
		t.Fatalf("SyncStatus = %q, want pending", row.SyncStatus)
	}

	got, err := ToDomainTask(row)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != task.ID || got.Title != task.Title || got.Description != task.Description {
		t.Fatalf("identity fields changed: %+v", got)
	}
	if got.Priority != task.Priority || got.StrictnessLevel != task.StrictnessLevel || got.Status != task.Status {
		t.Fatalf("enum fields changed: %+v", got)
	}
	if got.EstimatedDuration != task.EstimatedDuration {
		t.Fatalf("EstimatedDuration = %d", got.EstimatedDuration)
	}
	if !got.Deadline.Equal(task.Deadline) || !got.CreatedAt.Equal(task.CreatedAt) {
		t.Fatalf("dates changed: deadline %v created %v", got.Deadline, got.CreatedAt)
	}
	// Stored at millisecond precision.
	if !got.StartedAt.Equal(started.Truncate(time.Millisecond)) {
		t.Fatalf("StartedAt = %v", got.StartedAt)
	}
	if !got.CompletedAt.Equal(completed.Truncate(time.Millisecond)) {
		t.Fatalf("CompletedAt = %v", got.CompletedAt)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "work" || got.Tags[1] != "q1" {
		t.Fatalf("Tags = %v", got.Tags)
	}
	if got.FocusSessions != nil {
		t.Fatal("sessions should not travel through the row")
	}
}

func TestCodecOptionalFields(t *testing.T) {
	task := Task{ID: "t-2", Title: "bare", Status: StatusPending}
	row := ToPersistedTask(task, time.Now())
	if row.Description != nil || row.StartedAt != nil || row.CompletedAt != nil {
		t.Fatalf("optional fields should be nil: %+v", row)
	}
	got, err := ToDomainTask(row)
	if err != nil {
		t.Fatal(err)
	}
	if got.StartedAt != nil || got.CompletedAt != nil || got.Description != "" {
		t.Fatalf("unexpected optional values: %+v", got)
	}
}

func TestCodecTagsCopied(t *testing.T) {
	tags := []string{"a"}
	row := ToPersistedTask(Task{ID: "t", Title: "x", Tags: tags}, time.Now())
	tags[0] = "mutated"
	if row.Tags[0] != "a" {
		t.Fatal("row shares the caller's tag slice")
	}
}

func TestCodecRejectsMissingFields(t *testing.T) {
	if _, err := ToDomainTask(TaskRow{Title: "x"}); !errors.Is(err, ErrInvalidDraft) {
		t.Fatalf("missing id: got %v", err)
	}
	if _, err := ToDomainTask(TaskRow{ID: "x"}); err == nil {
		t.Fatal("missing title should fail")
	}
	if _, err := ToDomainSession(SessionRow{ID: "s"}); err == nil {
		t.Fatal("missing task id should fail")
	}
}

func TestSessionCodecRoundTrip(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(25 * time.Minute)
	fs := FocusSession{
		ID: "s-1", TaskID: "t-1", StartTime: start, EndTime: &end,
		Duration: 25, DistractionAttempts: 3, Completed: true,
	}
	row := ToPersistedSession(fs, end)
	if row.SyncStatus != SyncPending || row.LastModified != end.UnixMilli() {
		t.Fatalf("write metadata wrong: %+v", row)
	}
	got, err := ToDomainSession(row)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != fs.ID || got.TaskID != fs.TaskID || !got.StartTime.Equal(start) || !got.EndTime.Equal(end) {
		t.Fatalf("session changed: %+v", got)
	}
	if got.Duration != 25 || got.DistractionAttempts != 3 || !got.Completed {
		t.Fatalf("session counters changed: %+v", got)
	}
}

// ============================================================
// Errors
// ============================================================

func TestErrorClassification(t *testing.T) {
	err := newError(CodeNotFound, "task %s not found", "x")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected errors.Is to match by code")
	}
	if errors.Is(err, ErrStorage) {
		t.Fatal("different codes must not match")
	}
	if !HasCode(err, CodeNotFound) {
		t.Fatal("HasCode should see the code")
	}

	wrapped := storageErr("outer", err)
	if wrapped != error(err) {
		t.Fatal("classified errors should pass through storageErr")
	}

	raw := storageErr("exec", errors.New("disk I/O error"))
	if !errors.Is(raw, ErrStorage) {
		t.Fatalf("raw errors should become storage failures, got %v", raw)
	}
	if raw.Error() != "exec: disk I/O error" {
		t.Fatalf("message = %q", raw.Error())
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsDefaults(t *testing.T) {
	s := newTestStore(t)

	tests := map[string]string{
		SettingFocusDuration:   "1500",
		SettingBreakDuration:   "300",
		SettingDailyGoal:       "120",
		SettingDefaultPriority: "medium",
	}
	for key, want := range tests {
		got, err := s.GetSetting(key)
		if err != nil {
			t.Fatalf("GetSetting(%q): %v", key, err)
		}
		if got != want {
			t.Errorf("GetSetting(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestSetSettingOverwrite(t *testing.T) {
	s := newTestStore(t)
	if err := s.SetSetting(SettingFocusDuration, "3000"); err != nil {
		t.Fatal(err)
	}
	if got := s.GetIntSetting(SettingFocusDuration, 1); got != 3000 {
		t.Fatalf("focus duration = %d", got)
	}
}

func TestGetSettingNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSetting("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if got := s.GetIntSetting("nope", 42); got != 42 {
		t.Fatalf("fallback = %d", got)
	}
}

func TestGetIntSettingRejectsGarbage(t *testing.T) {
	s := newTestStore(t)
	s.SetSetting(SettingDailyGoal, "lots")
	if got := s.GetIntSetting(SettingDailyGoal, 120); got != 120 {
		t.Fatalf("expected fallback, got %d", got)
	}
}

func TestGetAllSettings(t *testing.T) {
	s := newTestStore(t)
	settings, err := s.GetAllSettings()
	if err != nil {
		t.Fatal(err)
	}
	if len(settings) != 4 {
		t.Fatalf("expected 4 settings, got %d", len(settings))
	}
	for i := 1; i < len(settings); i++ {
		if settings[i-1].Key > settings[i].Key {
			t.Fatal("settings should be sorted by key")
		}
	}
}

func TestCloseStore(t *testing.T) {
	s, err := NewMemory()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}
