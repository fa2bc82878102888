package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	AppEnv             string
	BaseURL            string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	JWTSecret          string
	FrontendURL        string
	AllowedEmails      []string

	// Anti-forgery nonces for the tracking endpoint
	NonceSecret string
	NonceTTL    time.Duration

	// Rate limiting on POST /atf/v1/track
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// In-process retention schedule
	RetentionScheduleEnabled bool
	RetentionInterval        time.Duration
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	jwtSecret := getEnv("JWT_SECRET", "secret")
	nonceSecret := getEnv("NONCE_SECRET", "")
	if nonceSecret == "" {
		nonceSecret = jwtSecret
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        getEnv("DATABASE_URL", "file:atf.sqlite"),
		AppEnv:             getEnv("APP_ENV", "local"),
		BaseURL:            getEnv("BASE_URL", "http://localhost:8080"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		JWTSecret:          jwtSecret,
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:8080/atf/v1/report"),
		AllowedEmails:      getList("ALLOWED_EMAILS"),

		NonceSecret: nonceSecret,
		NonceTTL:    getDuration("NONCE_TTL", 12*time.Hour),

		RateLimitEnabled:  getBool("RL_ENABLED", true),
		RateLimitRequests: getInt("RL_REQUESTS_LIMIT", 60),
		RateLimitWindow:   time.Duration(getInt("RL_WINDOW_SECONDS", 60)) * time.Second,

		RetentionScheduleEnabled: getBool("RETENTION_SCHEDULE_ENABLED", false),
		RetentionInterval:        getDuration("RETENTION_INTERVAL", 24*time.Hour),
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnv(key, "")); err == nil && d > 0 {
		return d
	}
	return fallback
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
