package store

import "time"

// The codec converts between domain snapshots and persisted rows. It does no
// I/O; callers pass the write time explicitly.

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func toMillisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

func fromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := time.UnixMilli(*ms)
	return &t
}

func copyTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, len(tags))
	copy(out, tags)
	return out
}

// ToDomainTask builds a Task from its row. FocusSessions is left empty for
// the caller to fill.
func ToDomainTask(row TaskRow) (Task, error) {
	if row.ID == "" {
		return Task{}, newError(CodeInvalid, "task row: missing id")
	}
	if row.Title == "" {
		return Task{}, newError(CodeInvalid, "task row %s: missing title", row.ID)
	}
	t := Task{
		ID:                row.ID,
		Title:             row.Title,
		Priority:          row.Priority,
		StrictnessLevel:   row.StrictnessLevel,
		Deadline:          fromMillis(row.Deadline),
		EstimatedDuration: row.EstimatedDuration,
		Status:            row.Status,
		Tags:              copyTags(row.Tags),
		CreatedAt:         fromMillis(row.CreatedAt),
		StartedAt:         fromMillisPtr(row.StartedAt),
		CompletedAt:       fromMillisPtr(row.CompletedAt),
	}
	if row.Description != nil {
		t.Description = *row.Description
	}
	return t, nil
}

// ToPersistedTask builds the row written for task at time now. The row is
// always marked pending; focus sessions are not part of the row.
func ToPersistedTask(task Task, now time.Time) TaskRow {
	row := TaskRow{
		ID:                task.ID,
		Title:             task.Title,
		Priority:          task.Priority,
		StrictnessLevel:   task.StrictnessLevel,
		Deadline:          toMillis(task.Deadline),
		EstimatedDuration: task.EstimatedDuration,
		Status:            task.Status,
		CreatedAt:         toMillis(task.CreatedAt),
		StartedAt:         toMillisPtr(task.StartedAt),
		CompletedAt:       toMillisPtr(task.CompletedAt),
		Tags:              copyTags(task.Tags),
		LastModified:      toMillis(now),
		SyncStatus:        SyncPending,
	}
	if task.Description != "" {
		desc := task.Description
		row.Description = &desc
	}
	return row
}

// ToDomainSession builds a FocusSession from its row without interventions.
func ToDomainSession(row SessionRow) (FocusSession, error) {
	if row.ID == "" {
		return FocusSession{}, newError(CodeInvalid, "session row: missing id")
	}
	if row.TaskID == "" {
		return FocusSession{}, newError(CodeInvalid, "session row %s: missing task id", row.ID)
	}
	return FocusSession{
		ID:                  row.ID,
		TaskID:              row.TaskID,
		StartTime:           fromMillis(row.StartTime),
		EndTime:             fromMillisPtr(row.EndTime),
		Duration:            row.Duration,
		DistractionAttempts: row.DistractionAttempts,
		Completed:           row.Completed,
	}, nil
}

// ToPersistedSession builds the pending row written for session at time now.
func ToPersistedSession(session FocusSession, now time.Time) SessionRow {
	return SessionRow{
		ID:                  session.ID,
		TaskID:              session.TaskID,
		StartTime:           toMillis(session.StartTime),
		EndTime:             toMillisPtr(session.EndTime),
		Duration:            session.Duration,
		DistractionAttempts: session.DistractionAttempts,
		Completed:           session.Completed,
		LastModified:        toMillis(now),
		SyncStatus:          SyncPending,
	}
}
