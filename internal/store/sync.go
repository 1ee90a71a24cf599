package store

import (
	"database/sql"
	"errors"

	"go.uber.org/zap"
)

const syncMetadataID = "main"

func getSyncMetadata(q querier) (*SyncMetadata, error) {
	var m SyncMetadata
	err := q.QueryRow(
		`SELECT id, last_sync_time, conflict_count, pending_changes FROM sync_metadata WHERE id = ?`,
		syncMetadataID,
	).Scan(&m.ID, &m.LastSyncTime, &m.ConflictCount, &m.PendingChanges)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// countUnsynced returns how many task and session rows are not synced, and
// how many of those are in conflict.
func countUnsynced(q querier) (pending, conflicts int, err error) {
	err = q.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN sync_status != 'synced' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sync_status = 'conflict' THEN 1 ELSE 0 END), 0)
		FROM (
			SELECT sync_status FROM tasks
			UNION ALL
			SELECT sync_status FROM focus_sessions
		)`).Scan(&pending, &conflicts)
	return pending, conflicts, err
}

// MarkForSync refreshes the sync counters from the current rows. Row sync
// states are left as they are.
func (s *Store) MarkForSync() (*SyncMetadata, error) {
	var m *SyncMetadata
	err := s.withTx(func(tx *sql.Tx) error {
		pending, conflicts, err := countUnsynced(tx)
		if err != nil {
			return storageErr("count unsynced rows", err)
		}
		_, err = tx.Exec(
			`INSERT INTO sync_metadata (id, last_sync_time, conflict_count, pending_changes)
			 VALUES (?, 0, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
				conflict_count = excluded.conflict_count,
				pending_changes = excluded.pending_changes`,
			syncMetadataID, conflicts, pending,
		)
		if err != nil {
			return storageErr("write sync metadata", err)
		}
		m, err = getSyncMetadata(tx)
		if err != nil {
			return storageErr("read sync metadata", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("sync counters refreshed",
		zap.Int("pending", m.PendingChanges),
		zap.Int("conflicts", m.ConflictCount),
	)
	return m, nil
}

// GetSyncMetadata returns the sync counters, or nil before the first
// MarkForSync or acknowledgement.
func (s *Store) GetSyncMetadata() (*SyncMetadata, error) {
	m, err := getSyncMetadata(s.db)
	if err != nil {
		return nil, storageErr("read sync metadata", err)
	}
	return m, nil
}

// GetPendingSync returns the task and session rows waiting to be pushed,
// oldest change first. Conflicted rows are not included.
func (s *Store) GetPendingSync() (*PendingSync, error) {
	tasks, err := listTaskRows(s.db, `WHERE sync_status = ? ORDER BY last_modified, id`, string(SyncPending))
	if err != nil {
		return nil, storageErr("list pending tasks", err)
	}
	sessions, err := listSessionRows(s.db, `WHERE sync_status = ? ORDER BY last_modified, id`, string(SyncPending))
	if err != nil {
		return nil, storageErr("list pending sessions", err)
	}
	return &PendingSync{Tasks: tasks, Sessions: sessions}, nil
}

// AcknowledgeTask marks a task row as accepted by the remote side.
func (s *Store) AcknowledgeTask(id string) error {
	return s.setSyncStatus("tasks", "task", id, SyncSynced)
}

// AcknowledgeSession marks a focus session row as accepted by the remote side.
func (s *Store) AcknowledgeSession(id string) error {
	return s.setSyncStatus("focus_sessions", "focus session", id, SyncSynced)
}

// MarkTaskConflict flags a task row the remote side rejected.
func (s *Store) MarkTaskConflict(id string) error {
	return s.setSyncStatus("tasks", "task", id, SyncConflict)
}

// MarkSessionConflict flags a focus session row the remote side rejected.
func (s *Store) MarkSessionConflict(id string) error {
	return s.setSyncStatus("focus_sessions", "focus session", id, SyncConflict)
}

// setSyncStatus changes the sync state of one row without touching its
// last_modified time. Acknowledgements also stamp last_sync_time.
func (s *Store) setSyncStatus(table, noun, id string, status SyncStatus) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`UPDATE `+table+` SET sync_status = ? WHERE id = ?`, string(status), id)
		if err != nil {
			return storageErr("set sync status of "+noun+" "+id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return newError(CodeNotFound, "%s %s not found", noun, id)
		}
		if status != SyncSynced {
			s.log.Warn("sync conflict", zap.String("kind", noun), zap.String("id", id))
			return nil
		}
		_, err = tx.Exec(
			`INSERT INTO sync_metadata (id, last_sync_time) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET last_sync_time = excluded.last_sync_time`,
			syncMetadataID, toMillis(s.now()),
		)
		if err != nil {
			return storageErr("stamp last sync time", err)
		}
		return nil
	})
}
