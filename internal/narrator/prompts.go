package narrator

import (
	"fmt"
	"strings"

	"github.com/taskquest/backend/internal/models"
)

func SystemPrompt() string {
	return `You write one-line in-app notifications for a task app with RPG-style progression.
Tone: warm, punchy, no emoji spam (at most one), never condescending.
Respond with JSON only: {"line": "<the notification text>"}
The line must be under 140 characters.`
}

func BuildUserPrompt(result *models.CompletionResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "The user just completed a task and earned %d XP.\n", result.XPAwarded)
	if result.LeveledUp {
		fmt.Fprintf(&b, "They reached level %d (%s).\n", result.NewLevel, result.RankTitle)
	}
	if result.Streak.Current > 1 {
		fmt.Fprintf(&b, "Their daily streak is now %d days.\n", result.Streak.Current)
	}
	for _, a := range result.NewAchievements {
		fmt.Fprintf(&b, "They unlocked the achievement %q (%s).\n", a.Name, a.Description)
	}
	if result.PerfectDay {
		b.WriteString("They cleared every pending task today.\n")
	}
	b.WriteString("Write the notification line.")

	return b.String()
}

// FallbackLine is the deterministic copy used when the model call fails or
// narration is disabled.
func FallbackLine(result *models.CompletionResult) string {
	switch {
	case result.LeveledUp:
		return fmt.Sprintf("Level up! You reached level %d — %s.", result.NewLevel, result.RankTitle)
	case len(result.NewAchievements) > 0:
		return fmt.Sprintf("Achievement unlocked: %s!", result.NewAchievements[0].Name)
	default:
		return fmt.Sprintf("+%d XP. Keep it going!", result.XPAwarded)
	}
}
