package main

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"github.com/taskquest/backend/internal/auth"
	"github.com/taskquest/backend/internal/config"
	"github.com/taskquest/backend/internal/database"
	"github.com/taskquest/backend/internal/middleware"
	"github.com/taskquest/backend/internal/narrator"
	"github.com/taskquest/backend/internal/progression"
	"github.com/taskquest/backend/internal/task"
)

func main() {
	cfg := config.Load()

	// Initialize database
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Wire collaborators
	taskRepo := task.NewRepo(db)
	progStore := progression.NewPostgresStore(db)
	progService := progression.NewService(progStore, taskRepo)
	progHandler := progression.NewHandler(progService)

	var taskNarrator task.Narrator
	if composer := narrator.NewComposerFromEnv(); composer != nil {
		taskNarrator = composer
		log.Println("[server] narration enabled")
	}
	taskHandler := task.NewHandler(taskRepo, progService, taskNarrator)

	authHandler := auth.NewHandler(db)

	// Setup router
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST")

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware)
	protected.HandleFunc("/auth/me", authHandler.GetCurrentUser).Methods("GET")

	protected.HandleFunc("/tasks", taskHandler.CreateTask).Methods("POST")
	protected.HandleFunc("/tasks", taskHandler.ListTasks).Methods("GET")
	protected.HandleFunc("/tasks/{id}/complete", taskHandler.CompleteTask).Methods("POST")

	protected.HandleFunc("/progression", progHandler.GetProgression).Methods("GET")
	protected.HandleFunc("/progression/history", progHandler.GetHistory).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Streak maintenance jobs
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.SweepSchedule, func() {
		if _, err := progService.RunStreakSweep(time.Now().UTC()); err != nil {
			log.Printf("[server] streak sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatalf("Failed to schedule streak sweep: %v", err)
	}
	if _, err := scheduler.AddFunc(cfg.ReminderSchedule, func() {
		reminders, err := progService.StreakReminders(time.Now().UTC(), cfg.WarnHours)
		if err != nil {
			log.Printf("[server] reminder scan failed: %v", err)
			return
		}
		// Delivery belongs to the notification layer; the scan only decides
		// who is notify-worthy.
		for _, rem := range reminders {
			log.Printf("[server] streak reminder: user %s, %d-day streak expires at %s",
				rem.UserID, rem.Streak, rem.ExpiresAt.Format(time.RFC3339))
		}
	}); err != nil {
		log.Fatalf("Failed to schedule reminder scan: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	handler := c.Handler(r)

	log.Printf("Server starting on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
