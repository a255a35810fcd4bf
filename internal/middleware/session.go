package middleware

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// SessionUserID is the session key under which the web login layer stores
// the authenticated user's stable identifier.
const SessionUserID = "user_id"

type identityKey struct{}

// SessionIdentity copies the session user identity into the request
// context, so downstream code that only sees a context.Context (the
// coordinator's identity resolver) can read it.
func SessionIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if userID, ok := session.Get(SessionUserID).(string); ok && userID != "" {
			ctx := context.WithValue(c.Request.Context(), identityKey{}, userID)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// IdentityFromContext extracts the session identity placed by
// SessionIdentity. Returns "" when the session is unauthenticated.
func IdentityFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(identityKey{}).(string); ok {
		return userID
	}
	return ""
}

// ContextWithIdentity returns a context carrying the given user identity.
// Used by tests and non-HTTP callers of the identity resolver.
func ContextWithIdentity(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, identityKey{}, userID)
}
