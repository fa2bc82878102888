package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "jwt-s")
	for _, key := range []string{"NONCE_SECRET", "NONCE_TTL", "RL_ENABLED", "RL_REQUESTS_LIMIT", "RL_WINDOW_SECONDS", "RETENTION_INTERVAL", "ALLOWED_EMAILS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "jwt-s", cfg.NonceSecret, "nonce secret falls back to the JWT secret")
	assert.Equal(t, 12*time.Hour, cfg.NonceTTL)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 60, cfg.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 24*time.Hour, cfg.RetentionInterval)
	assert.Empty(t, cfg.AllowedEmails)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("NONCE_SECRET", "n-s")
	t.Setenv("RL_ENABLED", "false")
	t.Setenv("RL_REQUESTS_LIMIT", "5")
	t.Setenv("RL_WINDOW_SECONDS", "10")
	t.Setenv("RETENTION_SCHEDULE_ENABLED", "true")
	t.Setenv("RETENTION_INTERVAL", "6h")
	t.Setenv("ALLOWED_EMAILS", " a@x.test, ,b@x.test ")

	cfg := Load()
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "n-s", cfg.NonceSecret)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, 5, cfg.RateLimitRequests)
	assert.Equal(t, 10*time.Second, cfg.RateLimitWindow)
	assert.True(t, cfg.RetentionScheduleEnabled)
	assert.Equal(t, 6*time.Hour, cfg.RetentionInterval)
	assert.Equal(t, []string{"a@x.test", "b@x.test"}, cfg.AllowedEmails)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("RL_REQUESTS_LIMIT", "many")
	t.Setenv("RETENTION_INTERVAL", "-1h")

	cfg := Load()
	assert.Equal(t, 60, cfg.RateLimitRequests)
	assert.Equal(t, 24*time.Hour, cfg.RetentionInterval)
}
