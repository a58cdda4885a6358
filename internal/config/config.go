package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	AllowedOrigins string

	// Streak maintenance
	SweepSchedule    string // cron expression for the streak sweep
	ReminderSchedule string // cron expression for the reminder scan
	WarnHours        int    // reminder window before the grace deadline
}

func Load() *Config {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8080"),
		AllowedOrigins:   getEnv("ALLOWED_ORIGINS", "*"),
		SweepSchedule:    getEnv("STREAK_SWEEP_SCHEDULE", "5 * * * *"),
		ReminderSchedule: getEnv("STREAK_REMINDER_SCHEDULE", "0 * * * *"),
		WarnHours:        getEnvInt("STREAK_WARN_HOURS", 4),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
