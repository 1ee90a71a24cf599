package store

import (
	"errors"
	"testing"
	"time"
)

// ============================================================
// Tasks
// ============================================================

func TestCreateAndGetTask(t *testing.T) {
	s := newTestStore(t)
	d := draft("Write report", PriorityMedium)
	d.Description = "numbers"
	d.Tags = []string{"work"}

	task := mustCreateTask(t, s, d)
	if task.ID == "" {
		t.Fatal("expected an id")
	}
	if task.Status != StatusPending {
		t.Fatalf("status = %q, want pending", task.Status)
	}
	if task.StartedAt != nil || task.CompletedAt != nil {
		t.Fatal("new task must not be started or completed")
	}
	if task.CreatedAt.IsZero() {
		t.Fatal("CreatedAt should be set")
	}
	if len(task.FocusSessions) != 0 {
		t.Fatal("new task should have no sessions")
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Write report" || got.Description != "numbers" || len(got.Tags) != 1 {
		t.Fatalf("unexpected task: %+v", got)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name   string
		mutate func(*TaskDraft)
	}{
		{"blank title", func(d *TaskDraft) { d.Title = "   " }},
		{"zero duration", func(d *TaskDraft) { d.EstimatedDuration = 0 }},
		{"negative duration", func(d *TaskDraft) { d.EstimatedDuration = -5 }},
		{"missing deadline", func(d *TaskDraft) { d.Deadline = time.Time{} }},
		{"unknown priority", func(d *TaskDraft) { d.Priority = "urgent" }},
		{"unknown strictness", func(d *TaskDraft) { d.StrictnessLevel = "lenient" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := draft("ok", PriorityLow)
			tt.mutate(&d)
			_, err := s.CreateTask(d)
			if !errors.Is(err, ErrInvalidDraft) {
				t.Fatalf("expected invalid draft, got %v", err)
			}
		})
	}

	all, _ := s.GetAllTasks()
	if len(all) != 0 {
		t.Fatalf("invalid drafts must not be stored, found %d tasks", len(all))
	}
}

func TestCreateTaskPastDeadlineAllowed(t *testing.T) {
	s := newTestStore(t)
	d := draft("late already", PriorityLow)
	d.Deadline = time.Now().Add(-48 * time.Hour)
	if _, err := s.CreateTask(d); err != nil {
		t.Fatalf("past deadlines are not validated: %v", err)
	}
}

func TestCreateTaskFocusStreak(t *testing.T) {
	s := newTestStore(t)

	mustCreateTask(t, s, draft("low", PriorityLow))
	mustCreateTask(t, s, draft("medium", PriorityMedium))
	st, err := s.GetStreak(StreakFocus)
	if err != nil {
		t.Fatal(err)
	}
	if st != nil {
		t.Fatalf("low/medium tasks must not touch the focus streak: %+v", st)
	}

	mustCreateTask(t, s, draft("critical", PriorityCritical))
	st, _ = s.GetStreak(StreakFocus)
	if st == nil || st.CurrentCount != 1 {
		t.Fatalf("focus streak = %+v, want current 1", st)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetTask("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetAllTasksOrderedByDeadline(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2030, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, offset := range []int{3, 1, 2} {
		d := draft(string(rune('a'+i)), PriorityLow)
		d.Deadline = base.AddDate(0, 0, offset)
		mustCreateTask(t, s, d)
	}

	tasks, err := s.GetAllTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if tasks[0].Title != "b" || tasks[1].Title != "c" || tasks[2].Title != "a" {
		t.Fatalf("wrong order: %s %s %s", tasks[0].Title, tasks[1].Title, tasks[2].Title)
	}
}

func TestGetAllTasksEmpty(t *testing.T) {
	s := newTestStore(t)
	tasks, err := s.GetAllTasks()
	if err != nil {
		t.Fatal(err)
	}
	if tasks != nil {
		t.Fatalf("expected nil slice, got %d items", len(tasks))
	}
}

func TestGetAllTasksHydratesSessions(t *testing.T) {
	s := newTestStore(t)
	a := mustCreateTask(t, s, draft("a", PriorityLow))
	b := mustCreateTask(t, s, draft("b", PriorityLow))
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

	s.CreateFocusSession(SessionDraft{TaskID: a.ID, StartTime: start.Add(time.Hour), Duration: 10})
	s.CreateFocusSession(SessionDraft{TaskID: a.ID, StartTime: start, Duration: 20})
	s.CreateFocusSession(SessionDraft{TaskID: b.ID, StartTime: start, Duration: 5})

	tasks, err := s.GetAllTasks()
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range tasks {
		switch task.ID {
		case a.ID:
			if len(task.FocusSessions) != 2 {
				t.Fatalf("task a: %d sessions", len(task.FocusSessions))
			}
			if task.FocusSessions[0].Duration != 20 {
				t.Fatal("sessions should be ordered by start time")
			}
		case b.ID:
			if len(task.FocusSessions) != 1 {
				t.Fatalf("task b: %d sessions", len(task.FocusSessions))
			}
		}
	}
}

func TestSnapshotsAreDetached(t *testing.T) {
	s := newTestStore(t)
	d := draft("orig", PriorityLow)
	d.Tags = []string{"x"}
	task := mustCreateTask(t, s, d)

	task.Title = "changed"
	task.Tags[0] = "changed"

	got, _ := s.GetTask(task.ID)
	if got.Title != "orig" || got.Tags[0] != "x" {
		t.Fatalf("mutating a snapshot leaked into storage: %+v", got)
	}
}

// ============================================================
// Status transitions
// ============================================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusPending, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusAbandoned, true},
		{StatusInProgress, StatusPending, true},
		{StatusInProgress, StatusInProgress, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusFailed, StatusPending, false},
		{StatusAbandoned, StatusInProgress, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestCreateStartComplete(t *testing.T) {
	s, clock := newClockedStore(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))

	d := TaskDraft{
		Title:             "Write report",
		Priority:          PriorityHigh,
		EstimatedDuration: 60,
		Deadline:          time.Date(2025, 6, 11, 17, 0, 0, 0, time.UTC),
		StrictnessLevel:   StrictnessStandard,
	}
	task := mustCreateTask(t, s, d)
	if task.Status != StatusPending || task.StartedAt != nil {
		t.Fatalf("new task: %+v", task)
	}
	focus, _ := s.GetStreak(StreakFocus)
	if focus == nil || focus.CurrentCount != 1 {
		t.Fatalf("focus streak = %+v, want 1", focus)
	}

	clock.Advance(10 * time.Minute)
	started, err := s.UpdateTaskStatus(task.ID, StatusInProgress)
	if err != nil {
		t.Fatal(err)
	}
	if started.Status != StatusInProgress {
		t.Fatalf("status = %q", started.Status)
	}
	if started.StartedAt == nil || !started.StartedAt.Equal(clock.Now()) {
		t.Fatalf("StartedAt = %v, want %v", started.StartedAt, clock.Now())
	}

	clock.Advance(time.Hour)
	done, err := s.UpdateTaskStatus(task.ID, StatusCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if done.CompletedAt == nil || !done.CompletedAt.Equal(clock.Now()) {
		t.Fatalf("CompletedAt = %v", done.CompletedAt)
	}
	if !done.StartedAt.Equal(*started.StartedAt) {
		t.Fatal("StartedAt must not move on completion")
	}
	completion, _ := s.GetStreak(StreakCompletion)
	if completion == nil || completion.CurrentCount != 1 {
		t.Fatalf("completion streak = %+v, want 1", completion)
	}
	consistency, _ := s.GetStreak(StreakConsistency)
	if consistency != nil {
		t.Fatal("unvalidated completion must not touch consistency")
	}
}

func TestCompleteValidated(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("checked", PriorityLow))
	s.UpdateTaskStatus(task.ID, StatusInProgress)

	if _, err := s.UpdateTaskStatus(task.ID, StatusCompleted, Validated()); err != nil {
		t.Fatal(err)
	}
	st, _ := s.GetStreak(StreakConsistency)
	if st == nil || st.CurrentCount != 1 {
		t.Fatalf("consistency streak = %+v, want 1", st)
	}
}

func TestStartedAtSetOnce(t *testing.T) {
	s, clock := newClockedStore(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	task := mustCreateTask(t, s, draft("retry", PriorityLow))

	first, _ := s.UpdateTaskStatus(task.ID, StatusInProgress)
	clock.Advance(time.Hour)
	if _, err := s.UpdateTaskStatus(task.ID, StatusPending); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Hour)
	again, err := s.UpdateTaskStatus(task.ID, StatusInProgress)
	if err != nil {
		t.Fatal(err)
	}
	if !again.StartedAt.Equal(*first.StartedAt) {
		t.Fatalf("StartedAt moved from %v to %v", first.StartedAt, again.StartedAt)
	}
}

func TestCompletedCannotRestart(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("done", PriorityLow))
	s.UpdateTaskStatus(task.ID, StatusInProgress)
	s.UpdateTaskStatus(task.ID, StatusCompleted)

	_, err := s.UpdateTaskStatus(task.ID, StatusInProgress)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	got, _ := s.GetTask(task.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status changed to %q", got.Status)
	}
}

func TestPendingCannotComplete(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("skip", PriorityLow))

	_, err := s.UpdateTaskStatus(task.ID, StatusCompleted)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if st, _ := s.GetStreak(StreakCompletion); st != nil {
		t.Fatal("a rejected transition must not touch streaks")
	}
}

func TestUpdateStatusUnknown(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("x", PriorityLow))
	_, err := s.UpdateTaskStatus(task.ID, "paused")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.UpdateTaskStatus("missing", StatusInProgress)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateStatusMarksPending(t *testing.T) {
	s, clock := newClockedStore(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	task := mustCreateTask(t, s, draft("sync me", PriorityLow))
	if err := s.AcknowledgeTask(task.ID); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Minute)
	s.UpdateTaskStatus(task.ID, StatusInProgress)

	row, err := getTaskRow(s.db, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.SyncStatus != SyncPending {
		t.Fatalf("sync status = %q, want pending", row.SyncStatus)
	}
	if row.LastModified != clock.Now().UnixMilli() {
		t.Fatalf("LastModified = %d, want %d", row.LastModified, clock.Now().UnixMilli())
	}
}

// ============================================================
// Edit
// ============================================================

func TestUpdateTaskFields(t *testing.T) {
	s, clock := newClockedStore(t, time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC))
	d := draft("first draft", PriorityLow)
	d.Description = "old"
	d.Tags = []string{"a"}
	task := mustCreateTask(t, s, d)
	if err := s.AcknowledgeTask(task.ID); err != nil {
		t.Fatal(err)
	}

	clock.Advance(time.Hour)
	title := "final draft"
	desc := ""
	priority := PriorityHigh
	deadline := time.Date(2030, 2, 1, 9, 0, 0, 0, time.UTC)
	estimate := 45
	tags := []string{"b", "c"}
	got, err := s.UpdateTask(task.ID, TaskPatch{
		Title:             &title,
		Description:       &desc,
		Priority:          &priority,
		Deadline:          &deadline,
		EstimatedDuration: &estimate,
		Tags:              &tags,
	})
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != title || got.Description != "" || got.Priority != PriorityHigh {
		t.Fatalf("unexpected task: %+v", got)
	}
	if !got.Deadline.Equal(deadline) || got.EstimatedDuration != 45 || len(got.Tags) != 2 {
		t.Fatalf("unexpected schedule: %+v", got)
	}
	if got.StrictnessLevel != StrictnessStandard || got.Status != StatusPending {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if !got.CreatedAt.Equal(task.CreatedAt) {
		t.Fatalf("CreatedAt moved from %v to %v", task.CreatedAt, got.CreatedAt)
	}

	row, err := getTaskRow(s.db, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if row.SyncStatus != SyncPending {
		t.Fatalf("sync status = %q, want pending", row.SyncStatus)
	}
	if row.LastModified != clock.Now().UnixMilli() {
		t.Fatalf("LastModified = %d, want %d", row.LastModified, clock.Now().UnixMilli())
	}
}

func TestUpdateTaskKeepsStatusAndSessions(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("busy", PriorityLow))
	s.UpdateTaskStatus(task.ID, StatusInProgress)
	s.CreateFocusSession(SessionDraft{TaskID: task.ID, StartTime: time.Now(), Duration: 10})

	title := "renamed"
	got, err := s.UpdateTask(task.ID, TaskPatch{Title: &title})
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusInProgress || got.StartedAt == nil {
		t.Fatalf("status fields changed: %+v", got)
	}
	if len(got.FocusSessions) != 1 {
		t.Fatalf("sessions = %d, want 1", len(got.FocusSessions))
	}
}

func TestUpdateTaskValidation(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("valid", PriorityLow))

	blank := "  "
	zero := 0
	unknown := Priority("urgent")
	lenient := StrictnessLevel("lenient")
	noDeadline := time.Time{}
	tests := map[string]TaskPatch{
		"blank title":        {Title: &blank},
		"zero duration":      {EstimatedDuration: &zero},
		"unknown priority":   {Priority: &unknown},
		"unknown strictness": {StrictnessLevel: &lenient},
		"missing deadline":   {Deadline: &noDeadline},
	}
	for name, patch := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := s.UpdateTask(task.ID, patch); !errors.Is(err, ErrInvalidDraft) {
				t.Fatalf("expected invalid draft, got %v", err)
			}
		})
	}

	got, _ := s.GetTask(task.ID)
	if got.Title != "valid" || got.EstimatedDuration != 30 || got.Priority != PriorityLow {
		t.Fatalf("rejected edits leaked into storage: %+v", got)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	title := "x"
	if _, err := s.UpdateTask("missing", TaskPatch{Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// ============================================================
// Atomicity
// ============================================================

func dropStreaks(t *testing.T, s *Store) {
	t.Helper()
	if _, err := s.db.Exec(`DROP TABLE streaks`); err != nil {
		t.Fatal(err)
	}
}

func TestCreateTaskRollsBackOnStreakFailure(t *testing.T) {
	s := newTestStore(t)
	dropStreaks(t, s)

	_, err := s.CreateTask(draft("urgent", PriorityHigh))
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	tasks, err := s.GetAllTasks()
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatalf("task row survived a failed streak write: %+v", tasks)
	}
}

func TestCompleteRollsBackOnStreakFailure(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("almost", PriorityLow))
	if _, err := s.UpdateTaskStatus(task.ID, StatusInProgress); err != nil {
		t.Fatal(err)
	}
	dropStreaks(t, s)

	_, err := s.UpdateTaskStatus(task.ID, StatusCompleted)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected storage failure, got %v", err)
	}
	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusInProgress || got.CompletedAt != nil {
		t.Fatalf("status write survived a failed streak write: %+v", got)
	}
}

// ============================================================
// Delete
// ============================================================

func TestDeleteTaskLeavesSessions(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("gone", PriorityLow))
	fs, err := s.CreateFocusSession(SessionDraft{TaskID: task.ID, StartTime: time.Now(), Duration: 15})
	if err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteTask(task.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetTask(task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted task still readable: %v", err)
	}

	orphans, err := s.ListOrphanedSessions()
	if err != nil {
		t.Fatal(err)
	}
	if len(orphans) != 1 || orphans[0].ID != fs.ID {
		t.Fatalf("expected the session to survive as an orphan, got %+v", orphans)
	}
}

func TestDeleteTaskNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteTask("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// ============================================================
// Focus sessions
// ============================================================

func TestCreateFocusSession(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("deep work", PriorityLow))
	start := time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(25 * time.Minute)

	fs, err := s.CreateFocusSession(SessionDraft{
		TaskID: task.ID, StartTime: start, EndTime: &end,
		Duration: 25, DistractionAttempts: 2, Completed: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if fs.ID == "" || fs.TaskID != task.ID || fs.Duration != 25 || !fs.Completed {
		t.Fatalf("unexpected session: %+v", fs)
	}

	got, err := s.GetTask(task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusPending {
		t.Fatal("recording a session must not change task status")
	}
	if len(got.FocusSessions) != 1 || got.FocusSessions[0].DistractionAttempts != 2 {
		t.Fatalf("sessions = %+v", got.FocusSessions)
	}
	if !got.FocusSessions[0].EndTime.Equal(end) {
		t.Fatalf("EndTime = %v", got.FocusSessions[0].EndTime)
	}
}

func TestCreateFocusSessionMissingTask(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateFocusSession(SessionDraft{TaskID: "missing", StartTime: time.Now(), Duration: 5})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateFocusSessionValidation(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("x", PriorityLow))
	start := time.Now()
	before := start.Add(-time.Minute)

	bad := []SessionDraft{
		{StartTime: start, Duration: 1},
		{TaskID: task.ID, Duration: 1},
		{TaskID: task.ID, StartTime: start, Duration: -1},
		{TaskID: task.ID, StartTime: start, DistractionAttempts: -1},
		{TaskID: task.ID, StartTime: start, EndTime: &before},
	}
	for i, d := range bad {
		if _, err := s.CreateFocusSession(d); !errors.Is(err, ErrInvalidDraft) {
			t.Errorf("draft %d: expected invalid, got %v", i, err)
		}
	}
}

func TestGetFocusSession(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("x", PriorityLow))
	fs, _ := s.CreateFocusSession(SessionDraft{TaskID: task.ID, StartTime: time.Now(), Duration: 5})

	got, err := s.GetFocusSession(fs.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != fs.ID {
		t.Fatalf("got %s", got.ID)
	}
	if _, err := s.GetFocusSession("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeleteFocusSession(t *testing.T) {
	s := newTestStore(t)
	task := mustCreateTask(t, s, draft("x", PriorityLow))
	fs, _ := s.CreateFocusSession(SessionDraft{TaskID: task.ID, StartTime: time.Now(), Duration: 5})

	if err := s.DeleteFocusSession(fs.ID); err != nil {
		t.Fatal(err)
	}
	sessions, _ := s.ListFocusSessions(task.ID)
	if len(sessions) != 0 {
		t.Fatalf("expected no sessions, got %d", len(sessions))
	}
	if err := s.DeleteFocusSession(fs.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected not found, got %v", err)
	}
}
