package models

import "time"

// ── Priority Constants ────────────────────────────────────

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidPriority reports whether p is one of the three known priorities.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// ── Core Progression Structs ──────────────────────────────

// UserProgression is the per-user progression row. LifetimeXP is the sole
// source of truth for Level; CurrentXP is progress within the current level.
type UserProgression struct {
	UserID           string     `json:"user_id"`
	CurrentXP        int64      `json:"current_xp"`
	LifetimeXP       int64      `json:"lifetime_xp"`
	Level            int        `json:"level"`
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastCompletionAt *time.Time `json:"last_completion_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// CompletionEvent is the input to the progression pipeline. It is produced
// by the task layer and never persisted as-is.
type CompletionEvent struct {
	UserID      string    `json:"user_id"`
	TaskID      string    `json:"task_id"`
	TaskTitle   string    `json:"task_title"`
	Priority    string    `json:"priority"`
	CompletedAt time.Time `json:"completed_at"`
}

// HistoryEntry is the append-only audit record behind achievement
// aggregates.
type HistoryEntry struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	TaskID      string    `json:"task_id"`
	TaskTitle   string    `json:"task_title"`
	XPEarned    int       `json:"xp_earned"`
	CompletedAt time.Time `json:"completed_at"`
}

// AchievementUnlock records one earned achievement. Unique per
// (user, achievement key); only the Notified flag ever changes.
type AchievementUnlock struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"user_id"`
	AchievementKey string    `json:"achievement_key"`
	UnlockedAt     time.Time `json:"unlocked_at"`
	Notified       bool      `json:"notified"`
}

// ── Response Types ────────────────────────────────────────

type StreakInfo struct {
	Current  int  `json:"current"`
	Longest  int  `json:"longest"`
	Previous int  `json:"previous"`
	Broken   bool `json:"broken"`
}

type UnlockedAchievement struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CompletionResult is the consolidated outcome of one completion, handed to
// the notification/UI layer.
type CompletionResult struct {
	TaskID          string                `json:"task_id"`
	XPAwarded       int                   `json:"xp_awarded"`
	LeveledUp       bool                  `json:"leveled_up"`
	NewLevel        int                   `json:"new_level"`
	RankTitle       string                `json:"rank_title"`
	Streak          StreakInfo            `json:"streak"`
	NewAchievements []UnlockedAchievement `json:"new_achievements"`
	PerfectDay      bool                  `json:"perfect_day"`
	Narration       string                `json:"narration,omitempty"`
}

type ProgressionResponse struct {
	UserProgression
	RankTitle      string   `json:"rank_title"`
	XPIntoLevel    int64    `json:"xp_into_level"`
	XPForNextLevel int64    `json:"xp_for_next_level"`
	Achievements   []string `json:"achievements"`
}

type HistoryListResponse struct {
	Entries  []HistoryEntry `json:"entries"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

// StreakReminder identifies a user whose streak expires soon unless they
// complete a task.
type StreakReminder struct {
	UserID    string    `json:"user_id"`
	Streak    int       `json:"streak"`
	ExpiresAt time.Time `json:"expires_at"`
}
