package progression

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/taskquest/backend/internal/models"
)

// ErrTaskNotFound is returned when a completion references a task the task
// source cannot resolve. The whole call fails and nothing is mutated.
var ErrTaskNotFound = fmt.Errorf("task not found")

// Store is the persistence collaborator for progression state. All methods
// may fail with storage errors, which the service wraps and propagates.
type Store interface {
	GetOrCreateProgression(userID string) (*models.UserProgression, error)
	SaveProgression(p *models.UserProgression) error
	AppendHistory(entry models.HistoryEntry) error
	History(userID string, page, pageSize int) ([]models.HistoryEntry, int, error)
	UnlockedKeys(userID string) (map[string]bool, error)
	InsertUnlock(userID, key string, unlockedAt time.Time) (*models.AchievementUnlock, error)
	Aggregate(userID string, now time.Time) (*StatsSnapshot, error)
	ActiveStreaks() ([]models.UserProgression, error)
	ResetStreak(userID string) error
}

// TaskSource is the external task-tracking collaborator. GetTask returns
// (nil, nil) when the task does not exist for that user.
type TaskSource interface {
	GetTask(taskID, userID string) (*models.TaskInfo, error)
	PendingTaskCount(userID string) (int, error)
}

type Service struct {
	store Store
	tasks TaskSource
	locks userLocks
}

func NewService(store Store, tasks TaskSource) *Service {
	return &Service{store: store, tasks: tasks}
}

// ── Completion Pipeline ─────────────────────────────────

// ProcessCompletion runs the full pipeline for one task completion: streak
// update, XP award, history append, achievement evaluation. Streak and XP
// are the user's core reward — errors there fail the call. Achievement
// evaluation degrades to a warning so a cosmetic fault never loses XP.
func (s *Service) ProcessCompletion(event models.CompletionEvent) (*models.CompletionResult, error) {
	task, err := s.tasks.GetTask(event.TaskID, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("resolve task: %w", err)
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	event.TaskTitle = task.Title
	event.Priority = task.Priority
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now().UTC()
	}

	mu := s.locks.forUser(event.UserID)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.store.GetOrCreateProgression(event.UserID)
	if err != nil {
		return nil, fmt.Errorf("load progression: %w", err)
	}

	updated, broken, previous := UpdateStreak(*current, event.CompletedAt)

	amount := XPForPriority(event.Priority)
	updated, leveledUp, err := AwardXP(updated, amount)
	if err != nil {
		return nil, fmt.Errorf("award xp: %w", err)
	}

	// One write commits streak and XP together. Anything after this point
	// degrades rather than failing the call.
	if err := s.store.SaveProgression(&updated); err != nil {
		return nil, fmt.Errorf("save progression: %w", err)
	}

	if err := s.store.AppendHistory(models.HistoryEntry{
		UserID:      event.UserID,
		TaskID:      event.TaskID,
		TaskTitle:   event.TaskTitle,
		XPEarned:    amount,
		CompletedAt: event.CompletedAt,
	}); err != nil {
		log.Printf("[progression] failed to append history for user %s: %v", event.UserID, err)
	}

	newAchievements, perfectDay := s.evaluateAchievements(event.UserID, &updated, event.CompletedAt)

	return &models.CompletionResult{
		TaskID:    event.TaskID,
		XPAwarded: amount,
		LeveledUp: leveledUp,
		NewLevel:  updated.Level,
		RankTitle: RankTitle(updated.Level),
		Streak: models.StreakInfo{
			Current:  updated.CurrentStreak,
			Longest:  updated.LongestStreak,
			Previous: previous,
			Broken:   broken,
		},
		NewAchievements: newAchievements,
		PerfectDay:      perfectDay,
	}, nil
}

// evaluateAchievements builds the post-update snapshot and unlocks newly
// qualified keys. Fails closed: any fetch error skips the whole step so no
// partial unlocks happen off a stale or missing aggregate.
func (s *Service) evaluateAchievements(userID string, p *models.UserProgression, now time.Time) ([]models.UnlockedAchievement, bool) {
	snapshot, err := s.store.Aggregate(userID, now)
	if err != nil {
		log.Printf("[progression] aggregate fetch failed for user %s, skipping achievements: %v", userID, err)
		return []models.UnlockedAchievement{}, false
	}
	snapshot.CurrentStreak = p.CurrentStreak
	snapshot.LongestStreak = p.LongestStreak
	snapshot.Level = p.Level

	perfectDay := false
	pending, err := s.tasks.PendingTaskCount(userID)
	if err != nil {
		log.Printf("[progression] pending-task count failed for user %s: %v", userID, err)
	} else {
		perfectDay = pending == 0
	}
	snapshot.PerfectDay = perfectDay

	unlocked, err := s.store.UnlockedKeys(userID)
	if err != nil {
		log.Printf("[progression] unlocked-key fetch failed for user %s, skipping achievements: %v", userID, err)
		return []models.UnlockedAchievement{}, perfectDay
	}

	newlyEarned := []models.UnlockedAchievement{}
	for _, key := range CheckAchievements(snapshot, unlocked) {
		unlock, err := s.UnlockAchievement(userID, key)
		if err != nil {
			log.Printf("[progression] failed to unlock %s for user %s: %v", key, userID, err)
			continue
		}
		if unlock == nil {
			continue // already had it
		}
		def := catalogByKey[key]
		newlyEarned = append(newlyEarned, models.UnlockedAchievement{
			Key:         key,
			Name:        def.Name,
			Description: def.Description,
		})
	}
	return newlyEarned, perfectDay
}

// UnlockAchievement records an unlock for the user. Idempotent: the record
// is returned only on first unlock; re-unlocking returns (nil, nil).
func (s *Service) UnlockAchievement(userID, key string) (*models.AchievementUnlock, error) {
	if _, ok := catalogByKey[key]; !ok {
		return nil, fmt.Errorf("unknown achievement key %q", key)
	}
	return s.store.InsertUnlock(userID, key, time.Now().UTC())
}

// ── Reads ───────────────────────────────────────────────

func (s *Service) GetProgression(userID string) (*models.ProgressionResponse, error) {
	p, err := s.store.GetOrCreateProgression(userID)
	if err != nil {
		return nil, fmt.Errorf("load progression: %w", err)
	}

	unlocked, err := s.store.UnlockedKeys(userID)
	if err != nil {
		unlocked = map[string]bool{}
	}
	keys := []string{}
	for _, a := range Catalog {
		if unlocked[a.Key] {
			keys = append(keys, a.Key)
		}
	}

	return &models.ProgressionResponse{
		UserProgression: *p,
		RankTitle:       RankTitle(p.Level),
		XPIntoLevel:     p.LifetimeXP - XPForLevel(p.Level),
		XPForNextLevel:  XPForLevel(p.Level+1) - XPForLevel(p.Level),
		Achievements:    keys,
	}, nil
}

func (s *Service) GetHistory(userID string, page, pageSize int) (*models.HistoryListResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	entries, total, err := s.store.History(userID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	return &models.HistoryListResponse{
		Entries:  entries,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ── Maintenance ─────────────────────────────────────────

// RunStreakSweep resets streaks whose grace period elapsed with no
// completion today and returns how many were reset. It re-checks each user
// under their lock so it never races an in-flight completion.
func (s *Service) RunStreakSweep(now time.Time) (int, error) {
	users, err := s.store.ActiveStreaks()
	if err != nil {
		return 0, fmt.Errorf("load active streaks: %w", err)
	}

	reset := 0
	for _, userID := range DetectBrokenStreaks(users, now) {
		mu := s.locks.forUser(userID)
		mu.Lock()
		p, err := s.store.GetOrCreateProgression(userID)
		if err == nil && streakExpired(*p, now) {
			if err := s.store.ResetStreak(userID); err != nil {
				log.Printf("[progression] sweep: failed to reset streak for user %s: %v", userID, err)
			} else {
				reset++
			}
		}
		mu.Unlock()
	}

	if reset > 0 {
		log.Printf("[progression] sweep: reset %d expired streaks", reset)
	}
	return reset, nil
}

// StreakReminders returns users whose streak expires within warnHours and
// who have not completed a task today. Delivery is the caller's problem.
func (s *Service) StreakReminders(now time.Time, warnHours int) ([]models.StreakReminder, error) {
	users, err := s.store.ActiveStreaks()
	if err != nil {
		return nil, fmt.Errorf("load active streaks: %w", err)
	}
	reminders := UsersWithExpiringStreaks(users, now, warnHours)
	if reminders == nil {
		reminders = []models.StreakReminder{}
	}
	return reminders, nil
}

// ── Per-User Serialization ──────────────────────────────

// userLocks hands out one mutex per user so progression read-modify-writes
// for the same user never interleave. Locks are never evicted; the map
// grows with the active user set, which is fine at this scale.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *userLocks) forUser(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	if _, ok := l.locks[userID]; !ok {
		l.locks[userID] = &sync.Mutex{}
	}
	return l.locks[userID]
}
