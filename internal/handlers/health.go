package handlers

import (
	"net/http"

	"github.com/devicegate/devicegate/internal/store"
	"github.com/devicegate/devicegate/internal/version"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	store *store.Store
}

func NewHealthHandler(s *store.Store) *HealthHandler {
	return &HealthHandler{store: s}
}

// Health handles GET /healthz
func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.store.Health(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
	})
}
