package progression

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskquest/backend/internal/models"
)

// ── In-Memory Fakes ─────────────────────────────────────

type fakeStore struct {
	progressions map[string]*models.UserProgression
	history      []models.HistoryEntry
	unlocks      map[string][]models.AchievementUnlock
	saveCalls    int

	aggregateErr error
	unlockedErr  error
	saveErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		progressions: make(map[string]*models.UserProgression),
		unlocks:      make(map[string][]models.AchievementUnlock),
	}
}

func (s *fakeStore) GetOrCreateProgression(userID string) (*models.UserProgression, error) {
	if p, ok := s.progressions[userID]; ok {
		copied := *p
		return &copied, nil
	}
	p := &models.UserProgression{UserID: userID, Level: 1}
	s.progressions[userID] = p
	copied := *p
	return &copied, nil
}

func (s *fakeStore) SaveProgression(p *models.UserProgression) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saveCalls++
	copied := *p
	s.progressions[p.UserID] = &copied
	return nil
}

func (s *fakeStore) AppendHistory(entry models.HistoryEntry) error {
	entry.ID = int64(len(s.history) + 1)
	s.history = append(s.history, entry)
	return nil
}

func (s *fakeStore) History(userID string, page, pageSize int) ([]models.HistoryEntry, int, error) {
	var entries []models.HistoryEntry
	for _, e := range s.history {
		if e.UserID == userID {
			entries = append(entries, e)
		}
	}
	return entries, len(entries), nil
}

func (s *fakeStore) UnlockedKeys(userID string) (map[string]bool, error) {
	if s.unlockedErr != nil {
		return nil, s.unlockedErr
	}
	keys := make(map[string]bool)
	for _, u := range s.unlocks[userID] {
		keys[u.AchievementKey] = true
	}
	return keys, nil
}

func (s *fakeStore) InsertUnlock(userID, key string, unlockedAt time.Time) (*models.AchievementUnlock, error) {
	for _, u := range s.unlocks[userID] {
		if u.AchievementKey == key {
			return nil, nil
		}
	}
	u := models.AchievementUnlock{
		ID:             int64(len(s.unlocks[userID]) + 1),
		UserID:         userID,
		AchievementKey: key,
		UnlockedAt:     unlockedAt,
	}
	s.unlocks[userID] = append(s.unlocks[userID], u)
	return &u, nil
}

func (s *fakeStore) Aggregate(userID string, now time.Time) (*StatsSnapshot, error) {
	if s.aggregateErr != nil {
		return nil, s.aggregateErr
	}
	snapshot := &StatsSnapshot{}
	day := calendarDay(now)
	weekStart := day.AddDate(0, 0, -int((day.Weekday()-time.Monday+7)%7))
	for _, e := range s.history {
		if e.UserID != userID {
			continue
		}
		snapshot.TotalTasksCompleted++
		if !e.CompletedAt.Before(day) {
			snapshot.TasksCompletedToday++
		}
		if !e.CompletedAt.Before(weekStart) {
			snapshot.TasksCompletedThisWeek++
		}
		snapshot.CompletionsByHour[e.CompletedAt.UTC().Hour()]++
	}
	return snapshot, nil
}

func (s *fakeStore) ActiveStreaks() ([]models.UserProgression, error) {
	var users []models.UserProgression
	for _, p := range s.progressions {
		if p.CurrentStreak > 0 {
			users = append(users, *p)
		}
	}
	return users, nil
}

func (s *fakeStore) ResetStreak(userID string) error {
	if p, ok := s.progressions[userID]; ok {
		p.CurrentStreak = 0
	}
	return nil
}

type fakeTasks struct {
	tasks   map[string]*models.TaskInfo
	pending int

	getErr     error
	pendingErr error
}

func newFakeTasks() *fakeTasks {
	return &fakeTasks{tasks: make(map[string]*models.TaskInfo), pending: 1}
}

func (f *fakeTasks) addTask(id, userID, title, priority string) {
	f.tasks[id] = &models.TaskInfo{ID: id, UserID: userID, Title: title, Priority: priority}
}

func (f *fakeTasks) GetTask(taskID, userID string) (*models.TaskInfo, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	t, ok := f.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	return t, nil
}

func (f *fakeTasks) PendingTaskCount(userID string) (int, error) {
	if f.pendingErr != nil {
		return 0, f.pendingErr
	}
	return f.pending, nil
}

func newTestService() (*Service, *fakeStore, *fakeTasks) {
	store := newFakeStore()
	tasks := newFakeTasks()
	return NewService(store, tasks), store, tasks
}

// ── Pipeline ────────────────────────────────────────────

func TestProcessCompletion_NewUser(t *testing.T) {
	svc, _, tasks := newTestService()
	tasks.addTask("t1", "u1", "Write report", models.PriorityHigh)

	result, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID:      "u1",
		TaskID:      "t1",
		CompletedAt: at("2024-06-01T09:00:00Z"),
	})
	require.NoError(t, err)

	assert.Equal(t, 25, result.XPAwarded)
	assert.False(t, result.LeveledUp)
	assert.Equal(t, 1, result.NewLevel)
	assert.Equal(t, "Novice", result.RankTitle)
	assert.Equal(t, 1, result.Streak.Current)
	assert.False(t, result.Streak.Broken)

	require.Len(t, result.NewAchievements, 1)
	assert.Equal(t, "tasks_1", result.NewAchievements[0].Key)
	assert.Equal(t, "First Steps", result.NewAchievements[0].Name)
	assert.False(t, result.PerfectDay)
}

func TestProcessCompletion_LevelUpCrossing(t *testing.T) {
	svc, store, tasks := newTestService()
	tasks.addTask("t1", "u1", "Quick fix", models.PriorityMedium)

	store.progressions["u1"] = &models.UserProgression{
		UserID:     "u1",
		Level:      1,
		LifetimeXP: XPForLevel(2) - 1,
	}

	result, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID:      "u1",
		TaskID:      "t1",
		CompletedAt: at("2024-06-01T12:00:00Z"),
	})
	require.NoError(t, err)

	assert.Equal(t, 15, result.XPAwarded)
	assert.True(t, result.LeveledUp)
	assert.Equal(t, 2, result.NewLevel)
}

func TestProcessCompletion_TaskNotFound(t *testing.T) {
	svc, store, _ := newTestService()

	_, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID: "u1",
		TaskID: "missing",
	})
	require.ErrorIs(t, err, ErrTaskNotFound)

	// All-or-nothing: no progression row created, nothing saved.
	assert.Empty(t, store.progressions)
	assert.Zero(t, store.saveCalls)
	assert.Empty(t, store.history)
}

func TestProcessCompletion_TaskSourceError(t *testing.T) {
	svc, store, tasks := newTestService()
	tasks.getErr = fmt.Errorf("upstream down")

	_, err := svc.ProcessCompletion(models.CompletionEvent{UserID: "u1", TaskID: "t1"})
	require.Error(t, err)
	assert.Zero(t, store.saveCalls)
}

func TestProcessCompletion_SaveFailureIsFatal(t *testing.T) {
	svc, store, tasks := newTestService()
	tasks.addTask("t1", "u1", "Chore", models.PriorityLow)
	store.saveErr = fmt.Errorf("db down")

	_, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID:      "u1",
		TaskID:      "t1",
		CompletedAt: at("2024-06-01T12:00:00Z"),
	})
	require.Error(t, err)
	assert.Empty(t, store.history, "history must not be appended when the save fails")
}

func TestProcessCompletion_AggregateFailureDegrades(t *testing.T) {
	svc, store, tasks := newTestService()
	tasks.addTask("t1", "u1", "Chore", models.PriorityLow)
	store.aggregateErr = fmt.Errorf("stats query failed")

	result, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID:      "u1",
		TaskID:      "t1",
		CompletedAt: at("2024-06-01T12:00:00Z"),
	})
	require.NoError(t, err, "achievement faults must not fail the completion")

	assert.Equal(t, 10, result.XPAwarded)
	assert.Empty(t, result.NewAchievements, "fail closed: no partial unlocks")
	assert.Empty(t, store.unlocks["u1"])
}

func TestProcessCompletion_PendingCountFailureSkipsPerfectDay(t *testing.T) {
	svc, _, tasks := newTestService()
	tasks.addTask("t1", "u1", "Chore", models.PriorityLow)
	tasks.pending = 0
	tasks.pendingErr = fmt.Errorf("task list unreachable")

	result, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID:      "u1",
		TaskID:      "t1",
		CompletedAt: at("2024-06-01T12:00:00Z"),
	})
	require.NoError(t, err)
	assert.False(t, result.PerfectDay)
}

func TestProcessCompletion_PerfectDay(t *testing.T) {
	svc, _, tasks := newTestService()
	tasks.addTask("t1", "u1", "Last one", models.PriorityMedium)
	tasks.pending = 0

	result, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID:      "u1",
		TaskID:      "t1",
		CompletedAt: at("2024-06-01T12:00:00Z"),
	})
	require.NoError(t, err)
	assert.True(t, result.PerfectDay)

	keys := make([]string, 0, len(result.NewAchievements))
	for _, a := range result.NewAchievements {
		keys = append(keys, a.Key)
	}
	assert.Contains(t, keys, "perfect_day")
}

func TestProcessCompletion_SameDayStreakUnchanged(t *testing.T) {
	svc, _, tasks := newTestService()
	tasks.addTask("t1", "u1", "First", models.PriorityLow)
	tasks.addTask("t2", "u1", "Second", models.PriorityLow)

	first, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID: "u1", TaskID: "t1", CompletedAt: at("2024-06-01T09:00:00Z"),
	})
	require.NoError(t, err)

	second, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID: "u1", TaskID: "t2", CompletedAt: at("2024-06-01T18:00:00Z"),
	})
	require.NoError(t, err)

	assert.Equal(t, first.Streak.Current, second.Streak.Current)
	assert.Equal(t, 1, second.Streak.Current)
}

func TestProcessCompletion_UnlockIdempotent(t *testing.T) {
	svc, store, tasks := newTestService()
	tasks.addTask("t1", "u1", "First", models.PriorityLow)
	tasks.addTask("t2", "u1", "Second", models.PriorityLow)

	first, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID: "u1", TaskID: "t1", CompletedAt: at("2024-06-01T09:00:00Z"),
	})
	require.NoError(t, err)
	require.Len(t, first.NewAchievements, 1)

	second, err := svc.ProcessCompletion(models.CompletionEvent{
		UserID: "u1", TaskID: "t2", CompletedAt: at("2024-06-01T10:00:00Z"),
	})
	require.NoError(t, err)
	assert.Empty(t, second.NewAchievements, "tasks_1 must not unlock twice")

	count := 0
	for _, u := range store.unlocks["u1"] {
		if u.AchievementKey == "tasks_1" {
			count++
		}
	}
	assert.Equal(t, 1, count, "exactly one unlock row per key")
}

func TestUnlockAchievement_Idempotent(t *testing.T) {
	svc, _, _ := newTestService()

	first, err := svc.UnlockAchievement("u1", "streak_3")
	require.NoError(t, err)
	require.NotNil(t, first, "first unlock returns the record")

	second, err := svc.UnlockAchievement("u1", "streak_3")
	require.NoError(t, err)
	assert.Nil(t, second, "re-unlock is a no-op, not an error")
}

func TestUnlockAchievement_UnknownKey(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.UnlockAchievement("u1", "no_such_key")
	require.Error(t, err)
}

// ── Maintenance ─────────────────────────────────────────

func TestRunStreakSweep(t *testing.T) {
	svc, store, _ := newTestService()

	expired := at("2024-01-01T09:00:00Z")
	fresh := at("2024-01-02T09:00:00Z")
	store.progressions["expired"] = &models.UserProgression{
		UserID: "expired", Level: 1, CurrentStreak: 5, LongestStreak: 5, LastCompletionAt: &expired,
	}
	store.progressions["fresh"] = &models.UserProgression{
		UserID: "fresh", Level: 1, CurrentStreak: 3, LongestStreak: 3, LastCompletionAt: &fresh,
	}

	reset, err := svc.RunStreakSweep(at("2024-01-03T12:00:00Z"))
	require.NoError(t, err)

	assert.Equal(t, 1, reset)
	assert.Equal(t, 0, store.progressions["expired"].CurrentStreak)
	assert.Equal(t, 5, store.progressions["expired"].LongestStreak, "longest survives the sweep")
	assert.Equal(t, 3, store.progressions["fresh"].CurrentStreak)
}

func TestStreakReminders(t *testing.T) {
	svc, store, _ := newTestService()

	last := at("2024-01-01T09:00:00Z")
	store.progressions["soon"] = &models.UserProgression{
		UserID: "soon", Level: 1, CurrentStreak: 7, LongestStreak: 7, LastCompletionAt: &last,
	}

	reminders, err := svc.StreakReminders(at("2024-01-02T21:00:00Z"), 4)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, "soon", reminders[0].UserID)
	assert.Equal(t, 7, reminders[0].Streak)
}

// ── Reads ───────────────────────────────────────────────

func TestGetProgression_LazyCreate(t *testing.T) {
	svc, _, _ := newTestService()

	resp, err := svc.GetProgression("brand-new")
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Level)
	assert.Equal(t, int64(0), resp.LifetimeXP)
	assert.Equal(t, 0, resp.CurrentStreak)
	assert.Equal(t, "Novice", resp.RankTitle)
	assert.Empty(t, resp.Achievements)
	assert.Equal(t, XPForLevel(2), resp.XPForNextLevel)
}
