package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimitedRouter(t *testing.T, limiter gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", limiter, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	return r
}

func doRequest(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = "10.0.0.1:12345"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMemoryRateLimiter(t *testing.T) {
	limiter, err := NewMemoryRateLimiter(3)
	require.NoError(t, err)
	r := setupRateLimitedRouter(t, limiter)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(r).Code)
	}

	w := doRequest(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "rate_limit_exceeded")
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := NewRedisRateLimiter(2, client)
	require.NoError(t, err)
	r := setupRateLimitedRouter(t, limiter)

	assert.Equal(t, http.StatusOK, doRequest(r).Code)
	assert.Equal(t, http.StatusOK, doRequest(r).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(r).Code)
}

func TestRedisRateLimiter_RequiresClient(t *testing.T) {
	_, err := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 10,
		StoreType:         RateLimitStoreRedis,
	})
	assert.Error(t, err)
}

func TestRateLimiter_DefaultsToMemoryStore(t *testing.T) {
	limiter, err := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 1})
	require.NoError(t, err)
	r := setupRateLimitedRouter(t, limiter)

	assert.Equal(t, http.StatusOK, doRequest(r).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(r).Code)
}
