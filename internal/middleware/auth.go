package middleware

import (
	"net/http"

	"github.com/devicegate/devicegate/internal/token"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyClaims is the gin context key holding verified token claims
	ContextKeyClaims = "token_claims"
)

// RequireAccessToken verifies the Authorization bearer token and stores
// its claims in the request context. Rejects missing, malformed, expired
// and wrong-type tokens with 401.
func RequireAccessToken(tokens *token.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Header("WWW-Authenticate", `Bearer realm="devicegate"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing_token",
			})
			return
		}

		claims, err := tokens.VerifyAccess(authHeader)
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer error="invalid_token"`)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":             "invalid_token",
				"error_description": err.Error(),
			})
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// ClaimsFromContext returns the verified claims stored by RequireAccessToken
func ClaimsFromContext(c *gin.Context) (*token.Claims, bool) {
	v, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*token.Claims)
	return claims, ok
}
