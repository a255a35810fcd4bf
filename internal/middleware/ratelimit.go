package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitStoreType defines the type of rate limit store
type RateLimitStoreType string

const (
	// RateLimitStoreMemory uses in-memory storage (single instance only)
	RateLimitStoreMemory RateLimitStoreType = "memory"
	// RateLimitStoreRedis uses Redis storage (distributed)
	RateLimitStoreRedis RateLimitStoreType = "redis"
)

// RateLimitConfig holds the configuration for rate limiting
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration // only for the redis store key expiry

	StoreType RateLimitStoreType

	// Redis settings (only used when StoreType = "redis")
	RedisClient *redis.Client
}

// NewRateLimiter creates a new rate limiter with configurable store backend
func NewRateLimiter(config RateLimitConfig) (gin.HandlerFunc, error) {
	rate := limiter.Rate{
		Period: 1 * time.Minute,
		Limit:  int64(config.RequestsPerMinute),
	}

	var store limiter.Store
	var err error

	switch config.StoreType {
	case RateLimitStoreRedis:
		if config.RedisClient == nil {
			return nil, fmt.Errorf("redis rate limit store requires a redis client")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := config.RedisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		store, err = limiterRedis.NewStoreWithOptions(config.RedisClient, limiter.StoreOptions{
			Prefix:          "ratelimit",
			CleanUpInterval: config.CleanupInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}

	case RateLimitStoreMemory:
		fallthrough
	default:
		store = memory.NewStore()
	}

	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(func(c *gin.Context) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate_limit_exceeded",
			"error_description": "Too many requests. Please try again later.",
		})
		c.Abort()
	})), nil
}

// NewMemoryRateLimiter creates an in-memory rate limiter (single instance)
func NewMemoryRateLimiter(requestsPerMinute int) (gin.HandlerFunc, error) {
	return NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: requestsPerMinute,
		StoreType:         RateLimitStoreMemory,
	})
}

// NewRedisRateLimiter creates a redis-backed rate limiter
func NewRedisRateLimiter(requestsPerMinute int, client *redis.Client) (gin.HandlerFunc, error) {
	return NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: requestsPerMinute,
		StoreType:         RateLimitStoreRedis,
		RedisClient:       client,
		CleanupInterval:   5 * time.Minute,
	})
}
