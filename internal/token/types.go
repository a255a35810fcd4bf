package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer and Audience are fixed constants embedded in and required of
	// every token this service signs.
	Issuer   = "devicegate"
	Audience = "devicegate-resources"

	// TokenTypeBearer is the token_type advertised in token responses
	TokenTypeBearer = "Bearer"

	// Token type discriminator claim values
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Metadata carries opaque extra claims embedded at mint time (scope,
// original_iat for refresh audit trails). Reserved claim names are ignored.
type Metadata map[string]any

// Claims is the verified content of a token
type Claims struct {
	DeviceID  string
	UserID    string
	TokenType string
	Scope     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Raw       jwt.MapClaims
}

// Pair is an access/refresh token pair as returned to polling clients
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope,omitempty"`
}
