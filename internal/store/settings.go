package store

import (
	"database/sql"
	"errors"
	"strconv"
)

// Setting keys seeded by the schema.
const (
	SettingFocusDuration   = "focus_duration" // seconds
	SettingBreakDuration   = "break_duration" // seconds
	SettingDailyGoal       = "daily_goal"     // focus minutes per day
	SettingDefaultPriority = "default_priority"
)

// GetSetting returns the value for key. A missing key is NotFound.
func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", newError(CodeNotFound, "setting %q not found", key)
	}
	if err != nil {
		return "", storageErr("get setting "+key, err)
	}
	return value, nil
}

// GetIntSetting parses a numeric setting, falling back when it is missing or
// not a positive integer.
func (s *Store) GetIntSetting(key string, fallback int) int {
	v, err := s.GetSetting(key)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func (s *Store) SetSetting(key, value string) error {
	if key == "" {
		return newError(CodeInvalid, "setting key is required")
	}
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return storageErr("set setting "+key, err)
	}
	return nil
}

func (s *Store) GetAllSettings() ([]Setting, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, storageErr("list settings", err)
	}
	defer rows.Close()

	var settings []Setting
	for rows.Next() {
		var st Setting
		if err := rows.Scan(&st.Key, &st.Value); err != nil {
			return nil, storageErr("scan setting", err)
		}
		settings = append(settings, st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list settings", err)
	}
	return settings, nil
}
