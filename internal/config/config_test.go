package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenExpiration)
	assert.Equal(t, 24*time.Hour, cfg.LongLivedTokenExpiration)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTokenExpiration)
	assert.Equal(t, 15*time.Minute, cfg.DeviceCodeExpiration)
	assert.Equal(t, 5, cfg.PollingInterval)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "devicegate.db", cfg.DatabaseDSN)
	assert.True(t, cfg.RateLimitEnabled)
	assert.Equal(t, 60, cfg.RateLimitRequestsPerMinute)
	assert.Equal(t, []string{"mail.read", "calendars.read", "files.read"}, cfg.ResourceScopes)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("ACCESS_TOKEN_EXPIRATION", "10m")
	t.Setenv("POLLING_INTERVAL", "7")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("RESOURCE_SCOPES", "tasks.read, notes.read")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_DSN", "host=localhost user=dg dbname=dg")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, 10*time.Minute, cfg.AccessTokenExpiration)
	assert.Equal(t, 7, cfg.PollingInterval)
	assert.False(t, cfg.RateLimitEnabled)
	assert.Equal(t, []string{"tasks.read", "notes.read"}, cfg.ResourceScopes)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, "host=localhost user=dg dbname=dg", cfg.DatabaseDSN)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_EXPIRATION", "not-a-duration")
	t.Setenv("POLLING_INTERVAL", "not-a-number")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.AccessTokenExpiration)
	assert.Equal(t, 5, cfg.PollingInterval)
}

func TestLoad_PostgresRequiresExplicitDSN(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")

	cfg := Load()
	assert.Empty(t, cfg.DatabaseDSN)
}
