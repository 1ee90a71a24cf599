package store

import (
	"sort"
	"time"
)

// GetTaskStats summarizes every task as of now. Overdue counts tasks past
// their deadline that are not completed, failed and abandoned ones included.
func (s *Store) GetTaskStats(now time.Time) (*TaskStats, error) {
	st := &TaskStats{}
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'in_progress' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN deadline < ? AND status != 'completed' THEN 1 ELSE 0 END), 0)
		FROM tasks`, toMillis(now),
	).Scan(&st.TotalTasks, &st.CompletedTasks, &st.InProgressTasks, &st.OverdueTasks)
	if err != nil {
		return nil, storageErr("task stats", err)
	}

	err = s.db.QueryRow(`
		SELECT COALESCE(SUM(f.duration), 0)
		FROM focus_sessions f
		JOIN tasks t ON t.id = f.task_id`,
	).Scan(&st.TotalFocusMinutes)
	if err != nil {
		return nil, storageErr("focus total", err)
	}

	if st.TotalTasks > 0 {
		st.CompletionRate = float64(st.CompletedTasks) / float64(st.TotalTasks) * 100
	}
	return st, nil
}

// GetDailyFocus totals focus sessions started in [from, to) per calendar day
// of the store location. Days without sessions are omitted.
func (s *Store) GetDailyFocus(from, to time.Time) ([]DailyFocus, error) {
	rows, err := s.db.Query(`
		SELECT start_time, duration
		FROM focus_sessions
		WHERE start_time >= ? AND start_time < ?`,
		toMillis(from), toMillis(to),
	)
	if err != nil {
		return nil, storageErr("daily focus", err)
	}
	defer rows.Close()

	byDay := make(map[string]*DailyFocus)
	for rows.Next() {
		var start int64
		var minutes int
		if err := rows.Scan(&start, &minutes); err != nil {
			return nil, storageErr("scan daily focus", err)
		}
		day := fromMillis(start).In(s.loc).Format("2006-01-02")
		df, ok := byDay[day]
		if !ok {
			df = &DailyFocus{Date: day}
			byDay[day] = df
		}
		df.Minutes += minutes
		df.Sessions++
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("daily focus", err)
	}

	out := make([]DailyFocus, 0, len(byDay))
	for _, df := range byDay {
		out = append(out, *df)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// GetTodayFocus returns the focus minutes recorded on the calendar day of now.
func (s *Store) GetTodayFocus(now time.Time) (int, error) {
	local := now.In(s.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	days, err := s.GetDailyFocus(start, start.AddDate(0, 0, 1))
	if err != nil {
		return 0, err
	}
	if len(days) == 0 {
		return 0, nil
	}
	return days[0].Minutes, nil
}

// Location is the timezone used for streak days and daily totals.
func (s *Store) Location() *time.Location {
	return s.loc
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}
