package progression

import (
	"fmt"
	"math"

	"github.com/taskquest/backend/internal/models"
)

// ErrInvalidAmount is returned when a negative XP award is attempted. This
// is a programming error, not a user-input condition.
var ErrInvalidAmount = fmt.Errorf("xp amount must be non-negative")

// XPForLevel returns the cumulative lifetime XP required to reach level n.
// Level 1 maps to 0. The curve is round(100*(n-1)^1.5 + 50*(n-1)), which is
// strictly increasing so LevelForXP can invert it exactly at boundaries.
func XPForLevel(level int) int64 {
	if level <= 1 {
		return 0
	}
	n := float64(level - 1)
	return int64(math.Round(100*math.Pow(n, 1.5) + 50*n))
}

// LevelForXP returns the largest level whose XP requirement is at or below
// lifetimeXP.
func LevelForXP(lifetimeXP int64) int {
	if lifetimeXP < 0 {
		return 1
	}
	level := 1
	for XPForLevel(level+1) <= lifetimeXP {
		level++
	}
	return level
}

// XPForPriority returns the base award for completing a task of the given
// priority. Unknown priorities fall back to the low award.
func XPForPriority(priority string) int {
	switch priority {
	case models.PriorityHigh:
		return 25
	case models.PriorityMedium:
		return 15
	default:
		return 10
	}
}

// AwardXP adds amount to the user's lifetime XP, recomputes the level, and
// reports whether a level boundary was crossed. The input progression is
// not mutated; CurrentXP tracks progress within the new level.
func AwardXP(p models.UserProgression, amount int) (models.UserProgression, bool, error) {
	if amount < 0 {
		return p, false, ErrInvalidAmount
	}

	oldLevel := p.Level
	p.LifetimeXP += int64(amount)
	p.Level = LevelForXP(p.LifetimeXP)
	p.CurrentXP = p.LifetimeXP - XPForLevel(p.Level)

	return p, p.Level > oldLevel, nil
}

// rankTier maps a minimum level to a cosmetic title.
type rankTier struct {
	minLevel int
	title    string
}

var rankTiers = []rankTier{
	{100, "Legend"},
	{75, "Grandmaster"},
	{50, "Master"},
	{35, "Expert"},
	{20, "Adept"},
	{10, "Journeyman"},
	{5, "Apprentice"},
	{1, "Novice"},
}

// RankTitle returns the cosmetic tier label for a level.
func RankTitle(level int) string {
	for _, t := range rankTiers {
		if level >= t.minLevel {
			return t.title
		}
	}
	return "Novice"
}
