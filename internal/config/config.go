package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server settings
	ServerAddr string
	BaseURL    string

	// JWT settings. When JWTSecret is empty a cryptographically random
	// secret is generated at process start; every token becomes
	// unverifiable after a restart. Documented behavior for single-process
	// deployments, set JWT_SECRET to persist trust across restarts.
	JWTSecret                string
	AccessTokenExpiration    time.Duration
	LongLivedTokenExpiration time.Duration
	RefreshTokenExpiration   time.Duration

	// Session settings (used by the device verification page)
	SessionSecret string

	// Device registration settings
	DeviceCodeExpiration time.Duration
	PollingInterval      int // seconds
	SweepInterval        time.Duration

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string

	// Metrics
	EnableMetrics              bool
	MetricsGaugeUpdateInterval time.Duration

	// Rate limiting
	RateLimitEnabled           bool
	RateLimitRequestsPerMinute int
	RateLimitRedisAddr         string // empty = in-memory store
	RateLimitRedisPassword     string
	RateLimitRedisDB           int

	// Resource metadata (RFC 9728 discovery)
	ResourceScopes []string
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	var dsn string
	if driver == "sqlite" {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "devicegate.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		BaseURL:    getEnv("BASE_URL", "http://localhost:8080"),

		JWTSecret:                getEnv("JWT_SECRET", ""),
		AccessTokenExpiration:    getEnvDuration("ACCESS_TOKEN_EXPIRATION", 5*time.Minute),
		LongLivedTokenExpiration: getEnvDuration("LONG_LIVED_TOKEN_EXPIRATION", 24*time.Hour),
		RefreshTokenExpiration:   getEnvDuration("REFRESH_TOKEN_EXPIRATION", 24*time.Hour),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),

		DeviceCodeExpiration: getEnvDuration("DEVICE_CODE_EXPIRATION", 15*time.Minute),
		PollingInterval:      getEnvInt("POLLING_INTERVAL", 5),
		SweepInterval:        getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		EnableMetrics:              getEnvBool("ENABLE_METRICS", true),
		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 30*time.Second),

		RateLimitEnabled:           getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequestsPerMinute: getEnvInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
		RateLimitRedisAddr:         getEnv("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPassword:     getEnv("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:           getEnvInt("RATE_LIMIT_REDIS_DB", 0),

		ResourceScopes: getEnvSlice(
			"RESOURCE_SCOPES",
			[]string{"mail.read", "calendars.read", "files.read"},
		),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var parts []string
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
