package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const streakColumns = `id, type, current_count, best_count, last_activity_date, ai_validated,
	validation_score, validation_questions, validation_answers, created_at, last_modified`

func scanStreak(scan func(dest ...any) error) (*Streak, error) {
	var st Streak
	var kind string
	var lastActivity, createdAt, lastModified int64
	var validated int
	var score sql.NullFloat64
	var questions, answers string

	err := scan(&st.ID, &kind, &st.CurrentCount, &st.BestCount, &lastActivity, &validated,
		&score, &questions, &answers, &createdAt, &lastModified)
	if err != nil {
		return nil, err
	}
	if st.ValidationQuestions, err = decodeList(questions); err != nil {
		return nil, err
	}
	if st.ValidationAnswers, err = decodeList(answers); err != nil {
		return nil, err
	}
	st.Type = StreakType(kind)
	st.LastActivityDate = fromMillis(lastActivity)
	st.AIValidated = validated != 0
	if score.Valid {
		st.ValidationScore = &score.Float64
	}
	st.CreatedAt = fromMillis(createdAt)
	st.LastModified = fromMillis(lastModified)
	return &st, nil
}

func getStreak(q querier, kind StreakType) (*Streak, error) {
	st, err := scanStreak(q.QueryRow(`SELECT `+streakColumns+` FROM streaks WHERE type = ?`, string(kind)).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return st, err
}

// calendarDaysBetween counts the midnights in loc between from and to. It is
// negative when to falls on an earlier day.
func calendarDaysBetween(from, to time.Time, loc *time.Location) int {
	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.In(loc).Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// nextStreakCount applies one activity report to a running count.
// increment=false is an explicit reset. Otherwise activity on the same day
// (or an earlier one, under clock skew) leaves the count, the next day extends
// it and a longer gap restarts it at 1.
func nextStreakCount(current, daysDiff int, increment bool) int {
	switch {
	case !increment:
		return 0
	case daysDiff <= 0:
		return current
	case daysDiff == 1:
		return current + 1
	default:
		return 1
	}
}

// updateStreak records activity for kind at now using q, so it can join the
// transaction of the write that triggered it.
func (s *Store) updateStreak(q querier, kind StreakType, increment bool, now time.Time) (*Streak, error) {
	if !kind.Valid() {
		return nil, newError(CodeInvalid, "unknown streak type %q", kind)
	}
	existing, err := getStreak(q, kind)
	if err != nil {
		return nil, storageErr("get streak "+string(kind), err)
	}
	ms := toMillis(now)

	if existing == nil {
		count := 0
		if increment {
			count = 1
		}
		_, err := q.Exec(
			`INSERT INTO streaks (`+streakColumns+`) VALUES (?, ?, ?, ?, ?, 0, NULL, '[]', '[]', ?, ?)`,
			uuid.NewString(), string(kind), count, count, ms, ms, ms,
		)
		if err != nil {
			return nil, storageErr("insert streak "+string(kind), err)
		}
		s.log.Debug("streak started", zap.String("type", string(kind)), zap.Int("count", count))
	} else {
		days := calendarDaysBetween(existing.LastActivityDate, now, s.loc)
		count := nextStreakCount(existing.CurrentCount, days, increment)
		best := max(existing.BestCount, count)
		_, err := q.Exec(
			`UPDATE streaks SET current_count = ?, best_count = ?, last_activity_date = ?,
				ai_validated = 0, validation_score = NULL, validation_questions = '[]',
				validation_answers = '[]', last_modified = ?
			 WHERE id = ?`,
			count, best, ms, ms, existing.ID,
		)
		if err != nil {
			return nil, storageErr("update streak "+string(kind), err)
		}
		if count < existing.CurrentCount {
			s.log.Info("streak reset",
				zap.String("type", string(kind)),
				zap.Int("was", existing.CurrentCount),
				zap.Int("days_idle", days),
			)
		}
	}

	st, err := getStreak(q, kind)
	if err != nil {
		return nil, storageErr("get streak "+string(kind), err)
	}
	return st, nil
}

// UpdateStreak reports activity for one streak category, creating the streak
// on first use. Every update clears a previous AI validation.
func (s *Store) UpdateStreak(kind StreakType, increment bool) (*Streak, error) {
	var st *Streak
	err := s.withTx(func(tx *sql.Tx) error {
		var err error
		st, err = s.updateStreak(tx, kind, increment, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// GetStreak returns the streak for kind, or nil if no activity was ever
// reported for it.
func (s *Store) GetStreak(kind StreakType) (*Streak, error) {
	st, err := getStreak(s.db, kind)
	if err != nil {
		return nil, storageErr("get streak "+string(kind), err)
	}
	return st, nil
}

// GetAllStreaks returns the existing streaks in StreakTypes order.
func (s *Store) GetAllStreaks() ([]Streak, error) {
	rows, err := s.db.Query(`SELECT ` + streakColumns + ` FROM streaks
		ORDER BY CASE type WHEN 'focus' THEN 0 WHEN 'completion' THEN 1 ELSE 2 END`)
	if err != nil {
		return nil, storageErr("list streaks", err)
	}
	defer rows.Close()

	var out []Streak
	for rows.Next() {
		st, err := scanStreak(rows.Scan)
		if err != nil {
			return nil, storageErr("scan streak", err)
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list streaks", err)
	}
	return out, nil
}

// SetStreakValidation records an external validator's verdict on the current
// run of a streak. The next UpdateStreak clears it again.
func (s *Store) SetStreakValidation(kind StreakType, v StreakValidation) (*Streak, error) {
	if v.Score < 0 || v.Score > 1 {
		return nil, newError(CodeInvalid, "validation score %v outside [0, 1]", v.Score)
	}
	var st *Streak
	err := s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(
			`UPDATE streaks SET ai_validated = 1, validation_score = ?, validation_questions = ?,
				validation_answers = ?, last_modified = ?
			 WHERE type = ?`,
			v.Score, encodeList(v.Questions), encodeList(v.Answers), toMillis(s.now()), string(kind),
		)
		if err != nil {
			return storageErr("validate streak "+string(kind), err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return newError(CodeNotFound, "streak %s not found", kind)
		}
		st, err = getStreak(tx, kind)
		if err != nil {
			return storageErr("get streak "+string(kind), err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}
