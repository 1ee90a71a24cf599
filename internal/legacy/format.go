package legacy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Timestamp decodes the date values the legacy blob carries: ISO-8601 strings
// or epoch milliseconds. null decodes to the zero time.
type Timestamp struct {
	time.Time

	// floating is set for a date-time written without a zone. Decode moves
	// its wall clock into the caller's location.
	floating bool
}

// Zoned layouts and bare dates are absolute (a bare date is UTC midnight).
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02",
}

var floatingLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time, t.floating = parsed, false
				return nil
			}
		}
		for _, layout := range floatingLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time, t.floating = parsed, true
				return nil
			}
		}
		return fmt.Errorf("unparseable date %q", s)
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("unparseable date %s", data)
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) {
		return fmt.Errorf("unparseable date %s", data)
	}
	t.Time, t.floating = time.UnixMilli(int64(ms)), false
	return nil
}

func (t *Timestamp) settle(loc *time.Location) {
	if t == nil || !t.floating {
		return
	}
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()
	t.Time = time.Date(y, mo, d, h, mi, sec, t.Nanosecond(), loc)
	t.floating = false
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"))
}

// Task is one element of the legacy task array, with its focus sessions
// embedded.
type Task struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	Priority          string     `json:"priority"`
	StrictnessLevel   string     `json:"strictnessLevel"`
	Deadline          Timestamp  `json:"deadline"`
	EstimatedDuration float64    `json:"estimatedDuration"`
	Status            string     `json:"status"`
	CreatedAt         Timestamp  `json:"createdAt"`
	StartedAt         *Timestamp `json:"startedAt,omitempty"`
	CompletedAt       *Timestamp `json:"completedAt,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	FocusSessions     []Session  `json:"focusSessions"`
}

type Session struct {
	ID                  string         `json:"id"`
	TaskID              string         `json:"taskId"`
	StartTime           Timestamp      `json:"startTime"`
	EndTime             *Timestamp     `json:"endTime,omitempty"`
	Duration            float64        `json:"duration"` // minutes, may be fractional
	DistractionAttempts int            `json:"distractionAttempts"`
	Completed           bool           `json:"completed"`
	AIInterventions     []Intervention `json:"aiInterventions,omitempty"`
}

type Intervention struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"sessionId"`
	Timestamp    Timestamp `json:"timestamp"`
	Trigger      string    `json:"trigger"`
	Message      string    `json:"message"`
	UserResponse string    `json:"userResponse,omitempty"`
	Severity     string    `json:"severity"`
}

// Decode parses a legacy blob. Empty input and an empty array both yield no
// tasks. Sessions and interventions missing their parent id inherit it from
// the enclosing record. Date-times written without a zone are read as wall
// clock in loc.
func Decode(data []byte, loc *time.Location) ([]Task, error) {
	if loc == nil {
		loc = time.Local
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode legacy tasks: %w", err)
	}
	for i := range tasks {
		t := &tasks[i]
		t.Deadline.settle(loc)
		t.CreatedAt.settle(loc)
		t.StartedAt.settle(loc)
		t.CompletedAt.settle(loc)
		for j := range t.FocusSessions {
			fs := &t.FocusSessions[j]
			if fs.TaskID == "" {
				fs.TaskID = t.ID
			}
			fs.StartTime.settle(loc)
			fs.EndTime.settle(loc)
			for k := range fs.AIInterventions {
				iv := &fs.AIInterventions[k]
				if iv.SessionID == "" {
					iv.SessionID = fs.ID
				}
				iv.Timestamp.settle(loc)
			}
		}
	}
	return tasks, nil
}

// Encode writes tasks in the legacy blob format.
func Encode(tasks []Task) ([]byte, error) {
	if tasks == nil {
		tasks = []Task{}
	}
	return json.Marshal(tasks)
}

// IsEmpty reports whether a blob carries no tasks at all.
func IsEmpty(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) == 0 || bytes.Equal(data, []byte("[]")) || bytes.Equal(data, []byte("null"))
}
