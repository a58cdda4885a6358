package task

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskquest/backend/internal/models"
)

// Repo is the Postgres-backed task list. It doubles as the progression
// engine's TaskSource: GetTask and PendingTaskCount satisfy that contract.
type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(userID string, req models.CreateTaskRequest) (*models.TaskInfo, error) {
	t := models.TaskInfo{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    req.Title,
		Priority: req.Priority,
		Status:   models.TaskPending,
		DueAt:    req.DueAt,
	}
	err := r.db.QueryRow(
		`INSERT INTO tasks (id, user_id, title, priority, status, due_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		t.ID, t.UserID, t.Title, t.Priority, t.Status, t.DueAt,
	).Scan(&t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &t, nil
}

// GetTask returns the task regardless of status, or (nil, nil) when no task
// with that ID belongs to the user.
func (r *Repo) GetTask(taskID, userID string) (*models.TaskInfo, error) {
	var t models.TaskInfo
	err := r.db.QueryRow(
		`SELECT id, user_id, title, priority, status, due_at, completed_at, created_at
		 FROM tasks WHERE id = $1 AND user_id = $2`,
		taskID, userID,
	).Scan(&t.ID, &t.UserID, &t.Title, &t.Priority, &t.Status, &t.DueAt, &t.CompletedAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return &t, nil
}

func (r *Repo) PendingTaskCount(userID string) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM tasks WHERE user_id = $1 AND status = $2`,
		userID, models.TaskPending,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending tasks: %w", err)
	}
	return count, nil
}

func (r *Repo) ListPending(userID string) ([]models.TaskInfo, error) {
	rows, err := r.db.Query(
		`SELECT id, user_id, title, priority, status, due_at, completed_at, created_at
		 FROM tasks
		 WHERE user_id = $1 AND status = $2
		 ORDER BY due_at NULLS LAST, created_at`,
		userID, models.TaskPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.TaskInfo
	for rows.Next() {
		var t models.TaskInfo
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Priority, &t.Status, &t.DueAt, &t.CompletedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkDone flips a pending task to done. Returns false when the task was
// already done (or does not exist — callers resolve existence first).
func (r *Repo) MarkDone(taskID, userID string, completedAt time.Time) (bool, error) {
	result, err := r.db.Exec(
		`UPDATE tasks SET status = $3, completed_at = $4
		 WHERE id = $1 AND user_id = $2 AND status = $5`,
		taskID, userID, models.TaskDone, completedAt, models.TaskPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark task done: %w", err)
	}
	rows, _ := result.RowsAffected()
	return rows > 0, nil
}
