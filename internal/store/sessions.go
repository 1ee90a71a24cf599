package store

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
)

const sessionColumns = `id, task_id, start_time, end_time, duration, distraction_attempts, completed,
	last_modified, sync_status`

func scanSessionRow(scan func(dest ...any) error) (SessionRow, error) {
	var r SessionRow
	var endTime sql.NullInt64
	var completed int
	var syncStatus string

	err := scan(&r.ID, &r.TaskID, &r.StartTime, &endTime, &r.Duration, &r.DistractionAttempts,
		&completed, &r.LastModified, &syncStatus)
	if err != nil {
		return SessionRow{}, err
	}
	if endTime.Valid {
		r.EndTime = &endTime.Int64
	}
	r.Completed = completed != 0
	r.SyncStatus = SyncStatus(syncStatus)
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func insertSessionRow(q querier, row SessionRow, ignoreExisting bool) (bool, error) {
	query := `INSERT INTO focus_sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if ignoreExisting {
		query += ` ON CONFLICT(id) DO NOTHING`
	}
	res, err := q.Exec(query,
		row.ID, row.TaskID, row.StartTime, row.EndTime, row.Duration, row.DistractionAttempts,
		boolToInt(row.Completed), row.LastModified, string(row.SyncStatus),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func listSessionRows(q querier, where string, args ...any) ([]SessionRow, error) {
	rows, err := q.Query(`SELECT `+sessionColumns+` FROM focus_sessions `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		r, err := scanSessionRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// loadSessions returns the sessions matched by where, ordered by start time,
// with their interventions attached. Rows are fully read before the
// interventions query runs since the store holds a single connection.
func loadSessions(q querier, where string, args ...any) ([]FocusSession, error) {
	rows, err := listSessionRows(q, where+` ORDER BY start_time, id`, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	interventions, err := loadInterventions(q, ids)
	if err != nil {
		return nil, err
	}

	out := make([]FocusSession, 0, len(rows))
	for _, r := range rows {
		fs, err := ToDomainSession(r)
		if err != nil {
			return nil, err
		}
		fs.Interventions = interventions[fs.ID]
		out = append(out, fs)
	}
	return out, nil
}

const interventionColumns = `id, session_id, timestamp, trigger_type, message, user_response, severity`

// interventionBatch caps the ids bound into one IN list.
const interventionBatch = 500

// loadInterventions groups the interventions of the given sessions by session
// id, each group ordered by timestamp.
func loadInterventions(q querier, sessionIDs []string) (map[string][]Intervention, error) {
	out := make(map[string][]Intervention)
	for len(sessionIDs) > 0 {
		n := min(len(sessionIDs), interventionBatch)
		if err := loadInterventionBatch(q, sessionIDs[:n], out); err != nil {
			return nil, err
		}
		sessionIDs = sessionIDs[n:]
	}
	return out, nil
}

func loadInterventionBatch(q querier, sessionIDs []string, out map[string][]Intervention) error {
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(sessionIDs)), ",")
	args := make([]any, len(sessionIDs))
	for i, id := range sessionIDs {
		args[i] = id
	}

	rows, err := q.Query(
		`SELECT `+interventionColumns+` FROM interventions
		 WHERE session_id IN (`+placeholders+`)
		 ORDER BY timestamp, id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var iv Intervention
		var ts int64
		var trigger, severity string
		var response sql.NullString
		if err := rows.Scan(&iv.ID, &iv.SessionID, &ts, &trigger, &iv.Message, &response, &severity); err != nil {
			return err
		}
		iv.Timestamp = fromMillis(ts)
		iv.Trigger = InterventionTrigger(trigger)
		iv.Severity = Severity(severity)
		iv.UserResponse = response.String
		out[iv.SessionID] = append(out[iv.SessionID], iv)
	}
	return rows.Err()
}

func insertIntervention(q querier, iv Intervention, ignoreExisting bool) (bool, error) {
	var response *string
	if iv.UserResponse != "" {
		response = &iv.UserResponse
	}
	query := `INSERT INTO interventions (` + interventionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if ignoreExisting {
		query += ` ON CONFLICT(id) DO NOTHING`
	}
	res, err := q.Exec(query,
		iv.ID, iv.SessionID, toMillis(iv.Timestamp), string(iv.Trigger), iv.Message, response, string(iv.Severity),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CreateFocusSession records a focus session against an existing task.
func (s *Store) CreateFocusSession(d SessionDraft) (*FocusSession, error) {
	switch {
	case d.TaskID == "":
		return nil, newError(CodeInvalid, "focus session needs a task id")
	case d.StartTime.IsZero():
		return nil, newError(CodeInvalid, "focus session needs a start time")
	case d.Duration < 0:
		return nil, newError(CodeInvalid, "focus session duration must not be negative, got %d", d.Duration)
	case d.DistractionAttempts < 0:
		return nil, newError(CodeInvalid, "distraction attempts must not be negative, got %d", d.DistractionAttempts)
	case d.EndTime != nil && d.EndTime.Before(d.StartTime):
		return nil, newError(CodeInvalid, "focus session ends before it starts")
	}

	session := FocusSession{
		ID:                  uuid.NewString(),
		TaskID:              d.TaskID,
		StartTime:           d.StartTime,
		EndTime:             d.EndTime,
		Duration:            d.Duration,
		DistractionAttempts: d.DistractionAttempts,
		Completed:           d.Completed,
	}
	row := ToPersistedSession(session, s.now())

	err := s.withTx(func(tx *sql.Tx) error {
		if _, err := getTaskRow(tx, d.TaskID); err != nil {
			return err
		}
		if _, err := insertSessionRow(tx, row, false); err != nil {
			return storageErr("insert focus session", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	created, err := ToDomainSession(row)
	if err != nil {
		return nil, storageErr("decode focus session", err)
	}
	return &created, nil
}

// GetFocusSession returns one session with its interventions.
func (s *Store) GetFocusSession(id string) (*FocusSession, error) {
	sessions, err := loadSessions(s.db, `WHERE id = ?`, id)
	if err != nil {
		return nil, storageErr("get focus session "+id, err)
	}
	if len(sessions) == 0 {
		return nil, newError(CodeNotFound, "focus session %s not found", id)
	}
	return &sessions[0], nil
}

// ListFocusSessions returns the sessions recorded for a task, oldest first.
func (s *Store) ListFocusSessions(taskID string) ([]FocusSession, error) {
	sessions, err := loadSessions(s.db, `WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, storageErr("list focus sessions for "+taskID, err)
	}
	return sessions, nil
}

// ListInterventions returns the interventions logged during a session.
func (s *Store) ListInterventions(sessionID string) ([]Intervention, error) {
	byID, err := loadInterventions(s.db, []string{sessionID})
	if err != nil {
		return nil, storageErr("list interventions for "+sessionID, err)
	}
	return byID[sessionID], nil
}

// ListOrphanedSessions returns sessions whose task has been deleted.
func (s *Store) ListOrphanedSessions() ([]FocusSession, error) {
	sessions, err := loadSessions(s.db, `WHERE task_id NOT IN (SELECT id FROM tasks)`)
	if err != nil {
		return nil, storageErr("list orphaned sessions", err)
	}
	return sessions, nil
}

// DeleteFocusSession removes a session and, through the foreign key, its
// interventions.
func (s *Store) DeleteFocusSession(id string) error {
	res, err := s.db.Exec(`DELETE FROM focus_sessions WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete focus session "+id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return newError(CodeNotFound, "focus session %s not found", id)
	}
	return nil
}
