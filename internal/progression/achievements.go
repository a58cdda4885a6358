package progression

// StatsSnapshot is the read-only aggregate an achievement predicate sees.
// It reflects the user's state *after* the completion being processed.
type StatsSnapshot struct {
	TotalTasksCompleted    int
	CurrentStreak          int
	LongestStreak          int
	Level                  int
	TasksCompletedToday    int
	TasksCompletedThisWeek int
	CompletionsByHour      [24]int
	PerfectDay             bool
}

// Achievement is one catalog entry: a key, display copy, and the predicate
// that decides whether a snapshot qualifies.
type Achievement struct {
	Key         string
	Name        string
	Description string
	Check       func(s *StatsSnapshot) bool
}

// Catalog is the closed achievement set. Order matters: evaluation and
// unlock happen in insertion order, and each predicate is independent.
var Catalog = []Achievement{
	// Count milestones
	{"tasks_1", "First Steps", "Complete your first task", atLeastTasks(1)},
	{"tasks_10", "Getting Things Done", "Complete 10 tasks", atLeastTasks(10)},
	{"tasks_50", "Taskmaster", "Complete 50 tasks", atLeastTasks(50)},
	{"tasks_100", "Century", "Complete 100 tasks", atLeastTasks(100)},
	{"tasks_500", "Unstoppable", "Complete 500 tasks", atLeastTasks(500)},

	// Streak milestones
	{"streak_3", "Warming Up", "3-day streak", atLeastStreak(3)},
	{"streak_7", "Week Warrior", "7-day streak", atLeastStreak(7)},
	{"streak_30", "Monthly Master", "30-day streak", atLeastStreak(30)},
	{"streak_100", "Centurion", "100-day streak", atLeastStreak(100)},

	// Level milestones
	{"level_5", "Apprentice", "Reach level 5", atLeastLevel(5)},
	{"level_10", "Journeyman", "Reach level 10", atLeastLevel(10)},
	{"level_25", "Veteran", "Reach level 25", atLeastLevel(25)},
	{"level_50", "Master", "Reach level 50", atLeastLevel(50)},

	// Time-of-day
	{"early_bird", "Early Bird", "Complete a task before 7am", func(s *StatsSnapshot) bool {
		for h := 0; h < 7; h++ {
			if s.CompletionsByHour[h] > 0 {
				return true
			}
		}
		return false
	}},
	{"night_owl", "Night Owl", "Complete a task after 10pm", func(s *StatsSnapshot) bool {
		for h := 22; h < 24; h++ {
			if s.CompletionsByHour[h] > 0 {
				return true
			}
		}
		return false
	}},

	// Volume
	{"daily_10", "Power Day", "Complete 10 tasks in one day", func(s *StatsSnapshot) bool {
		return s.TasksCompletedToday >= 10
	}},
	{"weekly_25", "Big Week", "Complete 25 tasks in one week", func(s *StatsSnapshot) bool {
		return s.TasksCompletedThisWeek >= 25
	}},

	// Composite
	{"perfect_day", "Perfect Day", "Finish every pending task", func(s *StatsSnapshot) bool {
		return s.PerfectDay
	}},
}

func atLeastTasks(n int) func(*StatsSnapshot) bool {
	return func(s *StatsSnapshot) bool { return s.TotalTasksCompleted >= n }
}

func atLeastStreak(n int) func(*StatsSnapshot) bool {
	return func(s *StatsSnapshot) bool { return s.CurrentStreak >= n }
}

func atLeastLevel(n int) func(*StatsSnapshot) bool {
	return func(s *StatsSnapshot) bool { return s.Level >= n }
}

// catalogByKey indexes the catalog for display-copy lookups.
var catalogByKey = func() map[string]Achievement {
	m := make(map[string]Achievement, len(Catalog))
	for _, a := range Catalog {
		m[a.Key] = a
	}
	return m
}()

// CheckAchievements evaluates the catalog against a snapshot and returns
// the keys that qualify and are not in alreadyUnlocked, in catalog order.
// Every predicate runs; there is no short-circuiting between entries.
func CheckAchievements(snapshot *StatsSnapshot, alreadyUnlocked map[string]bool) []string {
	var newlyQualified []string
	for _, a := range Catalog {
		if alreadyUnlocked[a.Key] {
			continue
		}
		if a.Check(snapshot) {
			newlyQualified = append(newlyQualified, a.Key)
		}
	}
	return newlyQualified
}
