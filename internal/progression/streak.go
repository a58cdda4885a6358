package progression

import (
	"time"

	"github.com/taskquest/backend/internal/models"
)

// All streak math runs on UTC calendar days.

// calendarDay truncates t to midnight UTC of its calendar day.
func calendarDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// graceDeadline returns the last instant at which a streak anchored on
// lastCompletion is still intact: 23:59:59 UTC of the following calendar
// day. The boundary is inclusive on the preserving side.
func graceDeadline(lastCompletion time.Time) time.Time {
	return calendarDay(lastCompletion).AddDate(0, 0, 2).Add(-time.Second)
}

// IsWithinGracePeriod reports whether now falls inside the grace window
// that starts at lastCompletion.
func IsWithinGracePeriod(lastCompletion, now time.Time) bool {
	return !now.UTC().After(graceDeadline(lastCompletion))
}

// UpdateStreak applies one completion at time now to the streak state and
// returns the updated progression, whether the streak broke, and the streak
// value before the update. The input is not mutated.
//
// Same-day re-completions leave the streak unchanged, the next calendar day
// increments it, and anything past the grace deadline resets it to 1.
func UpdateStreak(p models.UserProgression, now time.Time) (models.UserProgression, bool, int) {
	previous := p.CurrentStreak
	broken := false

	if p.LastCompletionAt == nil {
		p.CurrentStreak = 1
	} else {
		daysDiff := int(calendarDay(now).Sub(calendarDay(*p.LastCompletionAt)).Hours() / 24)

		switch {
		case daysDiff <= 0:
			// Same day — idempotent, no increment.
		case daysDiff == 1:
			p.CurrentStreak++
		case IsWithinGracePeriod(*p.LastCompletionAt, now):
			// Late but inside the grace window: continuation, not a bonus.
			p.CurrentStreak++
		default:
			p.CurrentStreak = 1
			broken = true
		}
	}

	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}

	t := now.UTC()
	p.LastCompletionAt = &t

	return p, broken, previous
}

// streakExpired reports whether a user's active streak has outlived its
// grace window with no completion today.
func streakExpired(p models.UserProgression, now time.Time) bool {
	if p.CurrentStreak == 0 || p.LastCompletionAt == nil {
		return false
	}
	if calendarDay(*p.LastCompletionAt).Equal(calendarDay(now)) {
		return false
	}
	return now.UTC().After(graceDeadline(*p.LastCompletionAt))
}

// DetectBrokenStreaks returns the IDs of users whose streak should be reset
// to zero: active streak, grace period elapsed, no completion today. This
// is the proactive decay check; the continue-on-next-completion path in
// UpdateStreak is independent of it.
func DetectBrokenStreaks(users []models.UserProgression, now time.Time) []string {
	var expired []string
	for _, p := range users {
		if streakExpired(p, now) {
			expired = append(expired, p.UserID)
		}
	}
	return expired
}

// UsersWithExpiringStreaks returns reminders for users within warnHours of
// their grace deadline who have not completed a task today. Users already
// past the deadline belong to the sweep, not the reminder list.
func UsersWithExpiringStreaks(users []models.UserProgression, now time.Time, warnHours int) []models.StreakReminder {
	var reminders []models.StreakReminder
	warn := time.Duration(warnHours) * time.Hour

	for _, p := range users {
		if p.CurrentStreak == 0 || p.LastCompletionAt == nil {
			continue
		}
		if calendarDay(*p.LastCompletionAt).Equal(calendarDay(now)) {
			continue
		}
		deadline := graceDeadline(*p.LastCompletionAt)
		if now.UTC().After(deadline) {
			continue
		}
		if deadline.Sub(now.UTC()) <= warn {
			reminders = append(reminders, models.StreakReminder{
				UserID:    p.UserID,
				Streak:    p.CurrentStreak,
				ExpiresAt: deadline,
			})
		}
	}
	return reminders
}
