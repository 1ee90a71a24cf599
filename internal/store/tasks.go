package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var allowedTransitions = map[TaskStatus]map[TaskStatus]struct{}{
	StatusPending: {
		StatusInProgress: {},
	},
	StatusInProgress: {
		StatusCompleted: {},
		StatusFailed:    {},
		StatusAbandoned: {},
		StatusPending:   {}, // drop the current attempt, keep the task open
	},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

const taskColumns = `id, title, description, priority, strictness_level, deadline, estimated_duration,
	status, created_at, started_at, completed_at, tags, last_modified, sync_status`

func scanTaskRow(scan func(dest ...any) error) (TaskRow, error) {
	var r TaskRow
	var desc sql.NullString
	var priority, strictness, status, tags, syncStatus string
	var startedAt, completedAt sql.NullInt64

	err := scan(&r.ID, &r.Title, &desc, &priority, &strictness, &r.Deadline, &r.EstimatedDuration,
		&status, &r.CreatedAt, &startedAt, &completedAt, &tags, &r.LastModified, &syncStatus)
	if err != nil {
		return TaskRow{}, err
	}
	r.Priority = Priority(priority)
	r.StrictnessLevel = StrictnessLevel(strictness)
	r.Status = TaskStatus(status)
	r.SyncStatus = SyncStatus(syncStatus)
	if desc.Valid {
		r.Description = &desc.String
	}
	if startedAt.Valid {
		r.StartedAt = &startedAt.Int64
	}
	if completedAt.Valid {
		r.CompletedAt = &completedAt.Int64
	}
	if r.Tags, err = decodeList(tags); err != nil {
		return TaskRow{}, err
	}
	return r, nil
}

// encodeList stores a string list as a JSON array column.
func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeList(s string) ([]string, error) {
	var out []string
	if s == "" || s == "[]" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// insertTaskRow writes row. With ignoreExisting a row whose id is already
// present is skipped and reported as not inserted.
func insertTaskRow(q querier, row TaskRow, ignoreExisting bool) (bool, error) {
	query := `INSERT INTO tasks (` + taskColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if ignoreExisting {
		query += ` ON CONFLICT(id) DO NOTHING`
	}
	res, err := q.Exec(query,
		row.ID, row.Title, row.Description, string(row.Priority), string(row.StrictnessLevel),
		row.Deadline, row.EstimatedDuration, string(row.Status), row.CreatedAt, row.StartedAt,
		row.CompletedAt, encodeList(row.Tags), row.LastModified, string(row.SyncStatus),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func updateTaskRow(q querier, row TaskRow) error {
	_, err := q.Exec(
		`UPDATE tasks SET title = ?, description = ?, priority = ?, strictness_level = ?, deadline = ?,
			estimated_duration = ?, status = ?, started_at = ?, completed_at = ?, tags = ?,
			last_modified = ?, sync_status = ?
		 WHERE id = ?`,
		row.Title, row.Description, string(row.Priority), string(row.StrictnessLevel), row.Deadline,
		row.EstimatedDuration, string(row.Status), row.StartedAt, row.CompletedAt, encodeList(row.Tags),
		row.LastModified, string(row.SyncStatus), row.ID,
	)
	return err
}

func getTaskRow(q querier, id string) (TaskRow, error) {
	row, err := scanTaskRow(q.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return TaskRow{}, newError(CodeNotFound, "task %s not found", id)
	}
	if err != nil {
		return TaskRow{}, storageErr("get task "+id, err)
	}
	return row, nil
}

func listTaskRows(q querier, where string, args ...any) ([]TaskRow, error) {
	rows, err := q.Query(`SELECT `+taskColumns+` FROM tasks `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TaskRow
	for rows.Next() {
		r, err := scanTaskRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func validateDraft(d TaskDraft) error {
	switch {
	case strings.TrimSpace(d.Title) == "":
		return newError(CodeInvalid, "task title is required")
	case d.EstimatedDuration <= 0:
		return newError(CodeInvalid, "estimated duration must be positive, got %d", d.EstimatedDuration)
	case d.Deadline.IsZero():
		return newError(CodeInvalid, "task deadline is required")
	case !d.Priority.Valid():
		return newError(CodeInvalid, "unknown priority %q", d.Priority)
	case !d.StrictnessLevel.Valid():
		return newError(CodeInvalid, "unknown strictness level %q", d.StrictnessLevel)
	}
	return nil
}

// CreateTask saves a new pending task. Creating a high or critical task also
// counts as focus-streak activity.
func (s *Store) CreateTask(d TaskDraft) (*Task, error) {
	if err := validateDraft(d); err != nil {
		return nil, err
	}
	now := s.now()
	task := Task{
		ID:                uuid.NewString(),
		Title:             d.Title,
		Description:       d.Description,
		Priority:          d.Priority,
		StrictnessLevel:   d.StrictnessLevel,
		Deadline:          d.Deadline,
		EstimatedDuration: d.EstimatedDuration,
		Status:            StatusPending,
		Tags:              d.Tags,
		CreatedAt:         now,
	}
	row := ToPersistedTask(task, now)

	err := s.withTx(func(tx *sql.Tx) error {
		if _, err := insertTaskRow(tx, row, false); err != nil {
			return storageErr("insert task", err)
		}
		if d.Priority == PriorityHigh || d.Priority == PriorityCritical {
			if _, err := s.updateStreak(tx, StreakFocus, true, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(row.ID)
}

// GetTask returns one task with its focus sessions.
func (s *Store) GetTask(id string) (*Task, error) {
	row, err := getTaskRow(s.db, id)
	if err != nil {
		return nil, err
	}
	t, err := ToDomainTask(row)
	if err != nil {
		return nil, storageErr("decode task "+id, err)
	}
	sessions, err := s.ListFocusSessions(id)
	if err != nil {
		return nil, err
	}
	t.FocusSessions = sessions
	return &t, nil
}

// GetAllTasks returns every task ordered by deadline, each with its sessions
// ordered by start time.
func (s *Store) GetAllTasks() ([]Task, error) {
	rows, err := listTaskRows(s.db, `ORDER BY deadline, created_at, id`)
	if err != nil {
		return nil, storageErr("list tasks", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	sessions, err := loadSessions(s.db, `WHERE task_id IN (SELECT id FROM tasks)`)
	if err != nil {
		return nil, storageErr("list focus sessions", err)
	}
	byTask := make(map[string][]FocusSession)
	for _, fs := range sessions {
		byTask[fs.TaskID] = append(byTask[fs.TaskID], fs)
	}

	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		t, err := ToDomainTask(r)
		if err != nil {
			return nil, storageErr("decode task "+r.ID, err)
		}
		t.FocusSessions = byTask[t.ID]
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (p TaskPatch) apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.StrictnessLevel != nil {
		t.StrictnessLevel = *p.StrictnessLevel
	}
	if p.Deadline != nil {
		t.Deadline = *p.Deadline
	}
	if p.EstimatedDuration != nil {
		t.EstimatedDuration = *p.EstimatedDuration
	}
	if p.Tags != nil {
		t.Tags = copyTags(*p.Tags)
	}
}

// UpdateTask edits a task's descriptive fields and marks it for sync. The
// result must still pass the checks CreateTask applies.
func (s *Store) UpdateTask(id string, patch TaskPatch) (*Task, error) {
	err := s.withTx(func(tx *sql.Tx) error {
		row, err := getTaskRow(tx, id)
		if err != nil {
			return err
		}
		task, err := ToDomainTask(row)
		if err != nil {
			return storageErr("decode task "+id, err)
		}
		patch.apply(&task)
		err = validateDraft(TaskDraft{
			Title:             task.Title,
			Priority:          task.Priority,
			StrictnessLevel:   task.StrictnessLevel,
			Deadline:          task.Deadline,
			EstimatedDuration: task.EstimatedDuration,
		})
		if err != nil {
			return err
		}
		if err := updateTaskRow(tx, ToPersistedTask(task, s.now())); err != nil {
			return storageErr("update task "+id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(id)
}

type statusChange struct {
	validated bool
}

// StatusOption adjusts UpdateTaskStatus.
type StatusOption func(*statusChange)

// Validated marks a completion as confirmed by the external validator, which
// also advances the consistency streak.
func Validated() StatusOption {
	return func(c *statusChange) { c.validated = true }
}

// UpdateTaskStatus moves a task through its state machine and records the
// start/completion timestamps. Completing a task advances the completion
// streak. The status change and streak updates commit together.
func (s *Store) UpdateTaskStatus(id string, status TaskStatus, opts ...StatusOption) (*Task, error) {
	var change statusChange
	for _, opt := range opts {
		opt(&change)
	}
	if !status.Valid() {
		return nil, newError(CodeInvalidTransition, "unknown task status %q", status)
	}

	err := s.withTx(func(tx *sql.Tx) error {
		row, err := getTaskRow(tx, id)
		if err != nil {
			return err
		}
		if !CanTransition(row.Status, status) {
			return newError(CodeInvalidTransition, "task %s: cannot move from %s to %s", id, row.Status, status)
		}
		task, err := ToDomainTask(row)
		if err != nil {
			return storageErr("decode task "+id, err)
		}

		now := s.now()
		task.Status = status
		if status == StatusInProgress && task.StartedAt == nil {
			task.StartedAt = &now
		}
		if status == StatusCompleted {
			task.CompletedAt = &now
		}
		if err := updateTaskRow(tx, ToPersistedTask(task, now)); err != nil {
			return storageErr("update task "+id, err)
		}

		if status != StatusCompleted {
			return nil
		}
		if _, err := s.updateStreak(tx, StreakCompletion, true, now); err != nil {
			return err
		}
		if change.validated {
			if _, err := s.updateStreak(tx, StreakConsistency, true, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(id)
}

// DeleteTask removes the task row only. Its focus sessions stay behind; use
// DeleteFocusSession to remove them.
func (s *Store) DeleteTask(id string) error {
	res, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete task "+id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return newError(CodeNotFound, "task %s not found", id)
	}
	return nil
}
