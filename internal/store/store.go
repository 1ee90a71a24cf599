package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const currentVersion = 2

// Clock supplies the current time. Tests inject a fixed clock to drive the
// streak day logic.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// LegacySource exposes the pre-SQLite flat blob. Load returns nil when no
// blob exists; Clear removes it.
type LegacySource interface {
	Load() ([]byte, error)
	Clear() error
}

// Store is the single owner of persisted tasks, focus sessions and streaks.
// Construct it once at startup and pass it to every consumer.
type Store struct {
	db     *sql.DB
	log    *zap.Logger
	clock  Clock
	loc    *time.Location
	legacy LegacySource

	migrationErr error
}

type Option func(*Store)

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLocation sets the timezone whose midnights bound streak days.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLegacySource enables the one-time import of legacy data during New.
func WithLegacySource(src LegacySource) Option {
	return func(s *Store) {
		s.legacy = src
	}
}

// New opens (or creates) the SQLite database at dbPath, applies the schema and
// imports any legacy blob before returning. A failed import is logged and
// reported by MigrationError; the store is still returned usable.
func New(dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes every statement and keeps :memory: databases
	// alive for the lifetime of the store.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{
		db:    db,
		log:   zap.NewNop(),
		clock: realClock{},
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if s.legacy != nil {
		report, err := s.migrateLegacy()
		if err != nil {
			s.migrationErr = err
			s.log.Error("legacy migration failed; legacy data kept for retry", zap.Error(err))
		} else if report.Total() > 0 {
			s.log.Info("legacy data migrated",
				zap.Int("tasks", report.Tasks),
				zap.Int("sessions", report.Sessions),
				zap.Int("interventions", report.Interventions),
			)
		}
	}

	s.log.Debug("store opened", zap.String("path", dbPath))
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory(opts ...Option) (*Store, error) {
	return New(":memory:", opts...)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// MigrationError returns the failure of the legacy import run by New, if any.
func (s *Store) MigrationError() error {
	return s.migrationErr
}

func (s *Store) now() time.Time {
	return s.clock.Now()
}

type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// withTx runs fn in a transaction. Nothing fn wrote survives an error.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("begin transaction", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit transaction", err)
	}
	return nil
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
		s.log.Info("schema created", zap.Int("version", 1))
	}

	if version < 2 {
		if err := s.migrateV2(); err != nil {
			return err
		}
		s.log.Info("schema migrated", zap.Int("version", 2))
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS tasks (
		id                  TEXT PRIMARY KEY,
		title               TEXT NOT NULL,
		description         TEXT,
		priority            TEXT NOT NULL,
		strictness_level    TEXT NOT NULL,
		deadline            INTEGER NOT NULL,
		estimated_duration  INTEGER NOT NULL,
		status              TEXT NOT NULL DEFAULT 'pending',
		created_at          INTEGER NOT NULL,
		started_at          INTEGER,
		completed_at        INTEGER,
		tags                TEXT NOT NULL DEFAULT '[]',
		last_modified       INTEGER NOT NULL,
		sync_status         TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_deadline ON tasks(deadline);
	CREATE INDEX IF NOT EXISTS idx_tasks_sync     ON tasks(sync_status);

	-- task_id is a plain back reference: deleting a task leaves its sessions.
	CREATE TABLE IF NOT EXISTS focus_sessions (
		id                    TEXT PRIMARY KEY,
		task_id               TEXT NOT NULL,
		start_time            INTEGER NOT NULL,
		end_time              INTEGER,
		duration              INTEGER NOT NULL DEFAULT 0,
		distraction_attempts  INTEGER NOT NULL DEFAULT 0,
		completed             INTEGER NOT NULL DEFAULT 0,
		last_modified         INTEGER NOT NULL,
		sync_status           TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_task ON focus_sessions(task_id, start_time);
	CREATE INDEX IF NOT EXISTS idx_sessions_sync ON focus_sessions(sync_status);

	CREATE TABLE IF NOT EXISTS interventions (
		id             TEXT PRIMARY KEY,
		session_id     TEXT NOT NULL REFERENCES focus_sessions(id) ON DELETE CASCADE,
		timestamp      INTEGER NOT NULL,
		trigger_type   TEXT NOT NULL,
		message        TEXT NOT NULL DEFAULT '',
		user_response  TEXT,
		severity       TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interventions_session ON interventions(session_id, timestamp);

	CREATE TABLE IF NOT EXISTS streaks (
		id                  TEXT PRIMARY KEY,
		type                TEXT NOT NULL UNIQUE,
		current_count       INTEGER NOT NULL DEFAULT 0,
		best_count          INTEGER NOT NULL DEFAULT 0,
		last_activity_date  INTEGER NOT NULL,
		ai_validated        INTEGER NOT NULL DEFAULT 0,
		validation_score    REAL,
		created_at          INTEGER NOT NULL,
		last_modified       INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_metadata (
		id               TEXT PRIMARY KEY,
		last_sync_time   INTEGER NOT NULL DEFAULT 0,
		conflict_count   INTEGER NOT NULL DEFAULT 0,
		pending_changes  INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	INSERT OR IGNORE INTO settings (key, value) VALUES
		('focus_duration',  '1500'),
		('break_duration',  '300'),
		('daily_goal',      '120'),
		('default_priority','medium');
	`
	_, err := s.db.Exec(ddl)
	return err
}

// migrateV2 stores the validator's questions and answers next to the score.
func (s *Store) migrateV2() error {
	stmts := []string{
		`ALTER TABLE streaks ADD COLUMN validation_questions TEXT NOT NULL DEFAULT '[]'`,
		`ALTER TABLE streaks ADD COLUMN validation_answers TEXT NOT NULL DEFAULT '[]'`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate v2: %w", err)
		}
	}
	return nil
}
