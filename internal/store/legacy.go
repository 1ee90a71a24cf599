package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Vortex-404/task-enforcer/internal/legacy"
)

// migrateLegacy imports the legacy blob into the structured tables. Only New
// runs it, before the store is handed out. Imported rows are marked synced. Each legacy task is written in its own transaction
// together with its sessions and interventions; rows that already exist are
// skipped, so a retry after a partial run never duplicates anything. The blob
// is removed only after every task was imported.
func (s *Store) migrateLegacy() (MigrationReport, error) {
	var report MigrationReport
	if s.legacy == nil {
		return report, nil
	}

	data, err := s.legacy.Load()
	if err != nil {
		return report, wrapError(CodeMigration, "read legacy data", err)
	}
	if legacy.IsEmpty(data) {
		return report, nil
	}

	tasks, err := legacy.Decode(data, s.loc)
	if err != nil {
		return report, wrapError(CodeMigration, "parse legacy data", err)
	}
	s.log.Info("migrating legacy data", zap.Int("tasks", len(tasks)))

	now := s.now()
	for i, lt := range tasks {
		rec, err := convertLegacyTask(lt, now)
		if err != nil {
			return report, wrapError(CodeMigration, fmt.Sprintf("legacy task #%d", i), err)
		}
		var added MigrationReport
		err = s.withTx(func(tx *sql.Tx) error {
			added = MigrationReport{}
			return rec.insert(tx, &added)
		})
		if err != nil {
			return report, wrapError(CodeMigration, "import legacy task "+lt.ID, err)
		}
		report.Tasks += added.Tasks
		report.Sessions += added.Sessions
		report.Interventions += added.Interventions
	}

	if err := s.legacy.Clear(); err != nil {
		return report, wrapError(CodeMigration, "remove legacy data", err)
	}
	return report, nil
}

// legacyRecord is one legacy task converted to rows, ready to insert.
type legacyRecord struct {
	task          TaskRow
	sessions      []SessionRow
	interventions []Intervention
}

func (r legacyRecord) insert(q querier, added *MigrationReport) error {
	ok, err := insertTaskRow(q, r.task, true)
	if err != nil {
		return err
	}
	if ok {
		added.Tasks++
	}
	for _, row := range r.sessions {
		ok, err := insertSessionRow(q, row, true)
		if err != nil {
			return err
		}
		if ok {
			added.Sessions++
		}
	}
	for _, iv := range r.interventions {
		ok, err := insertIntervention(q, iv, true)
		if err != nil {
			return err
		}
		if ok {
			added.Interventions++
		}
	}
	return nil
}

func convertLegacyTask(lt legacy.Task, now time.Time) (legacyRecord, error) {
	var rec legacyRecord
	switch {
	case lt.ID == "":
		return rec, fmt.Errorf("missing id")
	case lt.Title == "":
		return rec, fmt.Errorf("task %s: missing title", lt.ID)
	case !Priority(lt.Priority).Valid():
		return rec, fmt.Errorf("task %s: unknown priority %q", lt.ID, lt.Priority)
	case !StrictnessLevel(lt.StrictnessLevel).Valid():
		return rec, fmt.Errorf("task %s: unknown strictness level %q", lt.ID, lt.StrictnessLevel)
	case !TaskStatus(lt.Status).Valid():
		return rec, fmt.Errorf("task %s: unknown status %q", lt.ID, lt.Status)
	case lt.Deadline.IsZero():
		return rec, fmt.Errorf("task %s: missing deadline", lt.ID)
	case lt.CreatedAt.IsZero():
		return rec, fmt.Errorf("task %s: missing creation date", lt.ID)
	}

	task := Task{
		ID:                lt.ID,
		Title:             lt.Title,
		Description:       lt.Description,
		Priority:          Priority(lt.Priority),
		StrictnessLevel:   StrictnessLevel(lt.StrictnessLevel),
		Deadline:          lt.Deadline.Time,
		EstimatedDuration: roundMinutes(lt.EstimatedDuration),
		Status:            TaskStatus(lt.Status),
		Tags:              lt.Tags,
		CreatedAt:         lt.CreatedAt.Time,
		StartedAt:         optionalTime(lt.StartedAt),
		CompletedAt:       optionalTime(lt.CompletedAt),
	}
	rec.task = ToPersistedTask(task, now)
	rec.task.SyncStatus = SyncSynced

	for _, ls := range lt.FocusSessions {
		if ls.ID == "" {
			return rec, fmt.Errorf("task %s: session without id", lt.ID)
		}
		if ls.StartTime.IsZero() {
			return rec, fmt.Errorf("session %s: missing start time", ls.ID)
		}
		session := FocusSession{
			ID:                  ls.ID,
			TaskID:              ls.TaskID,
			StartTime:           ls.StartTime.Time,
			EndTime:             optionalTime(ls.EndTime),
			Duration:            roundMinutes(ls.Duration),
			DistractionAttempts: ls.DistractionAttempts,
			Completed:           ls.Completed,
		}
		row := ToPersistedSession(session, now)
		row.SyncStatus = SyncSynced
		rec.sessions = append(rec.sessions, row)

		for _, li := range ls.AIInterventions {
			iv, err := convertLegacyIntervention(li, ls.ID)
			if err != nil {
				return rec, err
			}
			rec.interventions = append(rec.interventions, iv)
		}
	}
	return rec, nil
}

func convertLegacyIntervention(li legacy.Intervention, sessionID string) (Intervention, error) {
	trigger := InterventionTrigger(li.Trigger)
	switch trigger {
	case TriggerAbandonAttempt, TriggerProcrastination, TriggerBreakRequest, TriggerDistraction:
	default:
		return Intervention{}, fmt.Errorf("intervention %s: unknown trigger %q", li.ID, li.Trigger)
	}
	severity := Severity(li.Severity)
	switch severity {
	case SeverityWarning, SeverityFirm, SeverityAggressive, SeverityMaximum:
	default:
		return Intervention{}, fmt.Errorf("intervention %s: unknown severity %q", li.ID, li.Severity)
	}
	if li.ID == "" {
		return Intervention{}, fmt.Errorf("session %s: intervention without id", sessionID)
	}
	if li.Timestamp.IsZero() {
		return Intervention{}, fmt.Errorf("intervention %s: missing timestamp", li.ID)
	}
	// Interventions always belong to the session they were nested in.
	return Intervention{
		ID:           li.ID,
		SessionID:    sessionID,
		Timestamp:    li.Timestamp.Time,
		Trigger:      trigger,
		Message:      li.Message,
		UserResponse: li.UserResponse,
		Severity:     severity,
	}, nil
}

func optionalTime(ts *legacy.Timestamp) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}

func roundMinutes(v float64) int {
	return int(math.Round(v))
}
