package progression

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/taskquest/backend/internal/models"
)

// PostgresStore implements Store on top of database/sql. One row per user
// in user_progression, append-only completion_history, and
// achievement_unlocks unique on (user_id, achievement_key).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ── Progression ─────────────────────────────────────────

func (s *PostgresStore) GetOrCreateProgression(userID string) (*models.UserProgression, error) {
	_, err := s.db.Exec(
		`INSERT INTO user_progression (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert progression: %w", err)
	}

	var p models.UserProgression
	err = s.db.QueryRow(
		`SELECT user_id, current_xp, lifetime_xp, level,
		        current_streak, longest_streak, last_completion_at,
		        created_at, updated_at
		 FROM user_progression WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.CurrentXP, &p.LifetimeXP, &p.Level,
		&p.CurrentStreak, &p.LongestStreak, &p.LastCompletionAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get progression: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SaveProgression(p *models.UserProgression) error {
	_, err := s.db.Exec(
		`UPDATE user_progression SET
		    current_xp = $2, lifetime_xp = $3, level = $4,
		    current_streak = $5, longest_streak = $6, last_completion_at = $7,
		    updated_at = NOW()
		 WHERE user_id = $1`,
		p.UserID, p.CurrentXP, p.LifetimeXP, p.Level,
		p.CurrentStreak, p.LongestStreak, p.LastCompletionAt,
	)
	if err != nil {
		return fmt.Errorf("save progression: %w", err)
	}
	return nil
}

// ── History ─────────────────────────────────────────────

func (s *PostgresStore) AppendHistory(entry models.HistoryEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO completion_history (user_id, task_id, task_title, xp_earned, completed_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.UserID, entry.TaskID, entry.TaskTitle, entry.XPEarned, entry.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(userID string, page, pageSize int) ([]models.HistoryEntry, int, error) {
	var total int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM completion_history WHERE user_id = $1`,
		userID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT id, user_id, task_id, task_title, xp_earned, completed_at
		 FROM completion_history
		 WHERE user_id = $1
		 ORDER BY completed_at DESC
		 LIMIT $2 OFFSET $3`,
		userID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.TaskID, &e.TaskTitle, &e.XPEarned, &e.CompletedAt); err != nil {
			return nil, 0, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// ── Achievements ────────────────────────────────────────

func (s *PostgresStore) UnlockedKeys(userID string) (map[string]bool, error) {
	rows, err := s.db.Query(
		`SELECT achievement_key FROM achievement_unlocks WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("get unlocked keys: %w", err)
	}
	defer rows.Close()

	unlocked := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		unlocked[key] = true
	}
	return unlocked, rows.Err()
}

// InsertUnlock creates the unlock row if it does not exist. On conflict the
// RETURNING clause yields no row and (nil, nil) comes back, which is how
// callers distinguish "newly earned" from "already had it".
func (s *PostgresStore) InsertUnlock(userID, key string, unlockedAt time.Time) (*models.AchievementUnlock, error) {
	var u models.AchievementUnlock
	err := s.db.QueryRow(
		`INSERT INTO achievement_unlocks (user_id, achievement_key, unlocked_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, achievement_key) DO NOTHING
		 RETURNING id, user_id, achievement_key, unlocked_at, notified`,
		userID, key, unlockedAt,
	).Scan(&u.ID, &u.UserID, &u.AchievementKey, &u.UnlockedAt, &u.Notified)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert unlock: %w", err)
	}
	return &u, nil
}

// ── Aggregates ──────────────────────────────────────────

// Aggregate builds the stats snapshot from completion_history. Streak,
// longest, and level come from the caller's in-memory progression; the
// perfect-day flag comes from the task source.
func (s *PostgresStore) Aggregate(userID string, now time.Time) (*StatsSnapshot, error) {
	snapshot := &StatsSnapshot{}

	day := calendarDay(now)
	weekStart := day.AddDate(0, 0, -int((day.Weekday()-time.Monday+7)%7))

	err := s.db.QueryRow(
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE completed_at >= $2),
		        COUNT(*) FILTER (WHERE completed_at >= $3)
		 FROM completion_history WHERE user_id = $1`,
		userID, day, weekStart,
	).Scan(&snapshot.TotalTasksCompleted, &snapshot.TasksCompletedToday, &snapshot.TasksCompletedThisWeek)
	if err != nil {
		return nil, fmt.Errorf("aggregate counts: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT EXTRACT(HOUR FROM completed_at AT TIME ZONE 'UTC')::int AS hour, COUNT(*)
		 FROM completion_history
		 WHERE user_id = $1
		 GROUP BY hour`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate hours: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hour, count int
		if err := rows.Scan(&hour, &count); err != nil {
			return nil, err
		}
		if hour >= 0 && hour < 24 {
			snapshot.CompletionsByHour[hour] = count
		}
	}
	return snapshot, rows.Err()
}

// ── Maintenance ─────────────────────────────────────────

func (s *PostgresStore) ActiveStreaks() ([]models.UserProgression, error) {
	rows, err := s.db.Query(
		`SELECT user_id, current_streak, longest_streak, last_completion_at
		 FROM user_progression
		 WHERE current_streak > 0`,
	)
	if err != nil {
		return nil, fmt.Errorf("get active streaks: %w", err)
	}
	defer rows.Close()

	var users []models.UserProgression
	for rows.Next() {
		var p models.UserProgression
		if err := rows.Scan(&p.UserID, &p.CurrentStreak, &p.LongestStreak, &p.LastCompletionAt); err != nil {
			return nil, err
		}
		users = append(users, p)
	}
	return users, rows.Err()
}

func (s *PostgresStore) ResetStreak(userID string) error {
	_, err := s.db.Exec(
		`UPDATE user_progression SET current_streak = 0, updated_at = NOW()
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("reset streak: %w", err)
	}
	return nil
}
