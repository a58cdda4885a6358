package models

import "time"

// ── Task Statuses ─────────────────────────────────────────

const (
	TaskPending = "pending"
	TaskDone    = "done"
)

// TaskInfo is what the progression engine needs to know about a task:
// priority, title, and whether anything is still pending today.
type TaskInfo struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ── Request Types ─────────────────────────────────────────

type CreateTaskRequest struct {
	Title    string     `json:"title"`
	Priority string     `json:"priority"`
	DueAt    *time.Time `json:"due_at,omitempty"`
}

// ── Response Types ────────────────────────────────────────

type TaskListResponse struct {
	Tasks        []TaskInfo `json:"tasks"`
	PendingCount int        `json:"pending_count"`
}
