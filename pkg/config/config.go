package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// PaymentCheckMode controls how often active requests are re-checked for payment.
type PaymentCheckMode string

const (
	// PaymentCheckAlways re-checks every active request on every run
	PaymentCheckAlways PaymentCheckMode = "always"
	// PaymentCheckInterval re-checks a request only after PaymentCheckInterval has elapsed
	PaymentCheckInterval PaymentCheckMode = "interval"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	GoogleClientID     string
	GoogleClientSecret string
	GmailLabelName     string

	AIProvider    string
	GeminiAPIKey  string
	GeminiModel   string
	OllamaBaseURL string
	OllamaModel   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CronSecret           string
	SchedulerEnabled     bool
	SchedulerInterval    time.Duration
	CollaboratorTimeout  time.Duration
	FollowupLockTTL      time.Duration
	PaymentCheckMode     PaymentCheckMode
	PaymentCheckInterval time.Duration

	VoicesFile string

	// AdminEmails may change process-wide runtime settings; empty means nobody can
	AdminEmails []string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: databaseURL(),
		JWTSecret:   getEnv("JWT_SECRET", "your-secret-key-change-in-production"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GmailLabelName:     getEnv("GMAIL_LABEL_NAME", "FUPM.ai"),

		AIProvider:    getEnv("AI_PROVIDER", "auto"),
		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		CronSecret:           getEnv("CRON_SECRET", ""),
		SchedulerEnabled:     getBoolEnv("SCHEDULER_ENABLED", false),
		SchedulerInterval:    getDurationEnv("SCHEDULER_INTERVAL", time.Hour),
		CollaboratorTimeout:  getDurationEnv("COLLABORATOR_TIMEOUT", 60*time.Second),
		FollowupLockTTL:      getDurationEnv("FOLLOWUP_LOCK_TTL", 5*time.Minute),
		PaymentCheckMode:     parsePaymentCheckMode(getEnv("PAYMENT_CHECK_MODE", string(PaymentCheckAlways))),
		PaymentCheckInterval: getDurationEnv("PAYMENT_CHECK_INTERVAL", 24*time.Hour),

		VoicesFile: getEnv("VOICES_FILE", "config/voices.yaml"),

		AdminEmails: getListEnv("ADMIN_EMAILS"),
	}
}

// databaseURL prefers DATABASE_URL and falls back to the discrete DB_* variables.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", "postgres"),
		getEnv("DB_NAME", "fupm"),
		getEnv("DB_SSLMODE", "disable"),
	)
}

func parsePaymentCheckMode(v string) PaymentCheckMode {
	switch PaymentCheckMode(strings.ToLower(strings.TrimSpace(v))) {
	case PaymentCheckInterval:
		return PaymentCheckInterval
	default:
		return PaymentCheckAlways
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping empty entries.
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
