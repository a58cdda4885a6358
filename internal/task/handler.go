package task

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/taskquest/backend/internal/models"
	"github.com/taskquest/backend/internal/progression"
)

// Narrator composes optional one-line notification copy for a completion
// result. Implementations must degrade, never block the completion.
type Narrator interface {
	Narrate(result *models.CompletionResult) (string, error)
}

type Handler struct {
	repo        *Repo
	progression *progression.Service
	narrator    Narrator // nil disables narration
}

func NewHandler(repo *Repo, prog *progression.Service, narrator Narrator) *Handler {
	return &Handler{repo: repo, progression: prog, narrator: narrator}
}

func getUserID(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value("user_id").(string)
	return uid, ok && uid != ""
}

func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	var req models.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "title is required"})
		return
	}
	if req.Priority == "" {
		req.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(req.Priority) {
		writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "priority must be low, medium, or high"})
		return
	}

	t, err := h.repo.Create(userID, req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create task"})
		return
	}

	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	tasks, err := h.repo.ListPending(userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list tasks"})
		return
	}
	if tasks == nil {
		tasks = []models.TaskInfo{}
	}

	writeJSON(w, http.StatusOK, models.TaskListResponse{Tasks: tasks, PendingCount: len(tasks)})
}

// CompleteTask marks the task done and runs the progression pipeline. The
// pipeline's result (XP, level-up, streak, achievements) is the response.
func (h *Handler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserID(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Authentication required"})
		return
	}

	taskID := mux.Vars(r)["id"]
	now := time.Now().UTC()

	t, err := h.repo.GetTask(taskID, userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to resolve task"})
		return
	}
	if t == nil {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Task not found"})
		return
	}

	done, err := h.repo.MarkDone(taskID, userID, now)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to complete task"})
		return
	}
	if !done {
		writeJSON(w, http.StatusConflict, models.ErrorResponse{Error: "Task already completed"})
		return
	}

	result, err := h.progression.ProcessCompletion(models.CompletionEvent{
		UserID:      userID,
		TaskID:      taskID,
		CompletedAt: now,
	})
	if err != nil {
		if errors.Is(err, progression.ErrTaskNotFound) {
			writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Task not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to process completion"})
		return
	}

	if h.narrator != nil && notifyWorthy(result) {
		narration, err := h.narrator.Narrate(result)
		if err != nil {
			// Narrate hands back fallback copy alongside the error.
			log.Printf("[task] narration failed for user %s: %v", userID, err)
		}
		result.Narration = narration
	}

	writeJSON(w, http.StatusOK, result)
}

// notifyWorthy mirrors the notification policy: level-ups and new
// achievements warrant a message, a plain completion does not.
func notifyWorthy(result *models.CompletionResult) bool {
	return result.LeveledUp || len(result.NewAchievements) > 0
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
