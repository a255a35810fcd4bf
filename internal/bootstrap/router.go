package bootstrap

import (
	"log"
	"net/http"

	"github.com/devicegate/devicegate/internal/config"
	"github.com/devicegate/devicegate/internal/metrics"
	"github.com/devicegate/devicegate/internal/middleware"
	"github.com/devicegate/devicegate/internal/token"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(
	cfg *config.Config,
	h handlerSet,
	tokens *token.Service,
	recorder metrics.Recorder,
	rateLimitRedisClient *redis.Client,
) *gin.Engine {
	r := gin.New()

	r.Use(metrics.HTTPMetricsMiddleware(recorder))
	r.Use(gin.Logger(), gin.Recovery())

	setupSessionMiddleware(r, cfg)

	r.GET("/healthz", h.health.Health)
	setupMetricsEndpoint(r, cfg)

	rateLimit := setupRateLimiting(cfg, rateLimitRedisClient)

	// Discovery (RFC 9728)
	r.GET("/.well-known/oauth-protected-resource", h.discovery.ProtectedResourceMetadata)

	// OAuth API routes (called by devices)
	oauth := r.Group("/oauth")
	{
		oauth.POST("/device/code", rateLimit, h.device.DeviceCodeRequest)
		oauth.POST("/token", rateLimit, h.token.Token)
		oauth.GET("/tokeninfo", middleware.RequireAccessToken(tokens), h.token.TokenInfo)
	}

	// Device verification (called by the user's browser or a frontend)
	r.POST("/device/verify", rateLimit, middleware.SessionIdentity(), h.device.DeviceVerify)

	logServerStartup(cfg)

	return r
}

// setupSessionMiddleware configures session handling middleware
func setupSessionMiddleware(r *gin.Engine, cfg *config.Config) {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   3600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("devicegate_session", sessionStore))
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config) {
	if !cfg.EnableMetrics {
		log.Printf("Prometheus metrics disabled")
		return
	}
	log.Printf("Prometheus metrics enabled at /metrics")
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// setupRateLimiting builds the shared rate limit middleware. Falls back
// to the in-memory store when no Redis client is configured, and to a
// no-op when rate limiting is disabled.
func setupRateLimiting(cfg *config.Config, redisClient *redis.Client) gin.HandlerFunc {
	if !cfg.RateLimitEnabled {
		return func(c *gin.Context) { c.Next() }
	}

	if redisClient != nil {
		limiter, err := middleware.NewRedisRateLimiter(cfg.RateLimitRequestsPerMinute, redisClient)
		if err == nil {
			log.Printf("Rate limiting enabled (redis store, %d req/min)", cfg.RateLimitRequestsPerMinute)
			return limiter
		}
		log.Printf("Redis rate limit store unavailable, falling back to memory: %v", err)
	}

	limiter, err := middleware.NewMemoryRateLimiter(cfg.RateLimitRequestsPerMinute)
	if err != nil {
		log.Printf("Failed to create rate limiter, requests will not be limited: %v", err)
		return func(c *gin.Context) { c.Next() }
	}
	log.Printf("Rate limiting enabled (memory store, %d req/min)", cfg.RateLimitRequestsPerMinute)
	return limiter
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config) {
	log.Printf("Device flow server starting on %s", cfg.ServerAddr)
	log.Printf("Verification URL: %s/device", cfg.BaseURL)
	log.Printf("Device records expire after %s, sweep runs every %s",
		cfg.DeviceCodeExpiration, cfg.SweepInterval)
}
