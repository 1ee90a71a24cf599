package store

import "time"

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type StrictnessLevel string

const (
	StrictnessStandard StrictnessLevel = "standard"
	StrictnessMilitary StrictnessLevel = "military"
	StrictnessElite    StrictnessLevel = "elite"
	StrictnessMaximum  StrictnessLevel = "maximum"
)

func (l StrictnessLevel) Valid() bool {
	switch l {
	case StrictnessStandard, StrictnessMilitary, StrictnessElite, StrictnessMaximum:
		return true
	}
	return false
}

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
	StatusAbandoned  TaskStatus = "abandoned"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusAbandoned:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusAbandoned
}

type SyncStatus string

const (
	SyncPending  SyncStatus = "pending"
	SyncSynced   SyncStatus = "synced"
	SyncConflict SyncStatus = "conflict"
)

type StreakType string

const (
	StreakFocus       StreakType = "focus"
	StreakCompletion  StreakType = "completion"
	StreakConsistency StreakType = "consistency"
)

// StreakTypes lists every streak category in display order.
var StreakTypes = []StreakType{StreakFocus, StreakCompletion, StreakConsistency}

func (k StreakType) Valid() bool {
	switch k {
	case StreakFocus, StreakCompletion, StreakConsistency:
		return true
	}
	return false
}

type InterventionTrigger string

const (
	TriggerAbandonAttempt  InterventionTrigger = "abandon_attempt"
	TriggerProcrastination InterventionTrigger = "procrastination"
	TriggerBreakRequest    InterventionTrigger = "break_request"
	TriggerDistraction     InterventionTrigger = "distraction"
)

type Severity string

const (
	SeverityWarning    Severity = "warning"
	SeverityFirm       Severity = "firm"
	SeverityAggressive Severity = "aggressive"
	SeverityMaximum    Severity = "maximum"
)

// Task is an immutable snapshot of a persisted task.
type Task struct {
	ID                string
	Title             string
	Description       string
	Priority          Priority
	StrictnessLevel   StrictnessLevel
	Deadline          time.Time
	EstimatedDuration int // minutes
	Status            TaskStatus
	Tags              []string
	CreatedAt         time.Time
	StartedAt         *time.Time
	CompletedAt       *time.Time
	FocusSessions     []FocusSession
}

// TaskDraft is the caller-built shape of a task that has not been saved yet.
type TaskDraft struct {
	Title             string
	Description       string
	Priority          Priority
	StrictnessLevel   StrictnessLevel
	Deadline          time.Time
	EstimatedDuration int
	Tags              []string
}

// TaskPatch edits the descriptive fields of a saved task. Nil fields are left
// alone. Status is changed only through UpdateTaskStatus.
type TaskPatch struct {
	Title             *string
	Description       *string
	Priority          *Priority
	StrictnessLevel   *StrictnessLevel
	Deadline          *time.Time
	EstimatedDuration *int
	Tags              *[]string
}

type FocusSession struct {
	ID                  string
	TaskID              string
	StartTime           time.Time
	EndTime             *time.Time
	Duration            int // minutes
	DistractionAttempts int
	Completed           bool
	Interventions       []Intervention
}

// SessionDraft describes a finished focus session to be recorded.
type SessionDraft struct {
	TaskID              string
	StartTime           time.Time
	EndTime             *time.Time
	Duration            int
	DistractionAttempts int
	Completed           bool
}

type Intervention struct {
	ID           string
	SessionID    string
	Timestamp    time.Time
	Trigger      InterventionTrigger
	Message      string
	UserResponse string
	Severity     Severity
}

type Streak struct {
	ID                  string
	Type                StreakType
	CurrentCount        int
	BestCount           int
	LastActivityDate    time.Time
	AIValidated         bool
	ValidationScore     *float64
	ValidationQuestions []string
	ValidationAnswers   []string
	CreatedAt           time.Time
	LastModified        time.Time
}

// StreakValidation is an external validator's verdict on a streak run.
type StreakValidation struct {
	Score     float64 // 0..1
	Questions []string
	Answers   []string
}

// TaskRow is the persisted shape of a task. Timestamps are epoch milliseconds.
type TaskRow struct {
	ID                string          `json:"id"`
	Title             string          `json:"title"`
	Description       *string         `json:"description,omitempty"`
	Priority          Priority        `json:"priority"`
	StrictnessLevel   StrictnessLevel `json:"strictnessLevel"`
	Deadline          int64           `json:"deadline"`
	EstimatedDuration int             `json:"estimatedDuration"`
	Status            TaskStatus      `json:"status"`
	CreatedAt         int64           `json:"createdAt"`
	StartedAt         *int64          `json:"startedAt,omitempty"`
	CompletedAt       *int64          `json:"completedAt,omitempty"`
	Tags              []string        `json:"tags,omitempty"`
	LastModified      int64           `json:"lastModified"`
	SyncStatus        SyncStatus      `json:"syncStatus"`
}

// SessionRow is the persisted shape of a focus session.
type SessionRow struct {
	ID                  string     `json:"id"`
	TaskID              string     `json:"taskId"`
	StartTime           int64      `json:"startTime"`
	EndTime             *int64     `json:"endTime,omitempty"`
	Duration            int        `json:"duration"`
	DistractionAttempts int        `json:"distractionAttempts"`
	Completed           bool       `json:"completed"`
	LastModified        int64      `json:"lastModified"`
	SyncStatus          SyncStatus `json:"syncStatus"`
}

// PendingSync is handed to an external sync transport.
type PendingSync struct {
	Tasks    []TaskRow    `json:"tasks"`
	Sessions []SessionRow `json:"sessions"`
}

type SyncMetadata struct {
	ID             string
	LastSyncTime   int64 // epoch ms, 0 = never
	ConflictCount  int
	PendingChanges int
}

// MigrationReport counts rows inserted by one legacy migration pass.
type MigrationReport struct {
	Tasks         int
	Sessions      int
	Interventions int
}

func (r MigrationReport) Total() int {
	return r.Tasks + r.Sessions + r.Interventions
}

type TaskStats struct {
	TotalTasks        int
	CompletedTasks    int
	InProgressTasks   int
	OverdueTasks      int
	TotalFocusMinutes int
	CompletionRate    float64 // percent
}

// DailyFocus aggregates focus sessions per calendar day.
type DailyFocus struct {
	Date     string // 2006-01-02 in the store location
	Minutes  int
	Sessions int
}

type Setting struct {
	Key   string
	Value string
}
