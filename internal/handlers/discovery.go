package handlers

import (
	"net/http"

	"github.com/devicegate/devicegate/internal/config"

	"github.com/gin-gonic/gin"
)

type DiscoveryHandler struct {
	config *config.Config
}

func NewDiscoveryHandler(cfg *config.Config) *DiscoveryHandler {
	return &DiscoveryHandler{config: cfg}
}

// ProtectedResourceMetadata handles GET /.well-known/oauth-protected-resource
// (RFC 9728). Resource servers and clients use this to locate the
// authorization server and learn which scopes it can grant.
func (h *DiscoveryHandler) ProtectedResourceMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"resource":                 h.config.BaseURL,
		"authorization_servers":    []string{h.config.BaseURL},
		"scopes_supported":         h.config.ResourceScopes,
		"bearer_methods_supported": []string{"header"},
	})
}
