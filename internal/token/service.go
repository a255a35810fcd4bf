package token

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/devicegate/devicegate/internal/config"
	"github.com/devicegate/devicegate/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// reservedClaims are set by the service itself and cannot be overridden
// through mint metadata.
var reservedClaims = map[string]bool{
	"device_id": true,
	"user_id":   true,
	"type":      true,
	"iat":       true,
	"exp":       true,
	"iss":       true,
	"aud":       true,
	"jti":       true,
}

// Service signs and verifies access/refresh JWTs. It is stateless: claims
// exist only inside the signed token string, so revocation happens at the
// device registry, not here.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	longTTL    time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewService creates a token service from configuration. When no signing
// secret is configured a random one is generated for the process lifetime,
// which makes all tokens unverifiable across restarts.
func NewService(cfg *config.Config) (*Service, error) {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		random, err := util.CryptoRandomBytes(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate signing secret: %w", err)
		}
		secret = random
		log.Println(
			"[Token] JWT_SECRET not set, using a process-lifetime random secret; tokens will not survive a restart",
		)
	}
	return &Service{
		secret:     secret,
		accessTTL:  cfg.AccessTokenExpiration,
		longTTL:    cfg.LongLivedTokenExpiration,
		refreshTTL: cfg.RefreshTokenExpiration,
		now:        time.Now,
	}, nil
}

// mint creates a signed JWT with the given type, subject claims and TTL
func (s *Service) mint(deviceID, userID, tokenType string, ttl time.Duration, md Metadata) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"device_id": deviceID,
		"type":      tokenType,
		"iat":       now.Unix(),
		"exp":       now.Add(ttl).Unix(),
		"iss":       Issuer,
		"aud":       Audience,
		"jti":       uuid.New().String(),
	}
	if userID != "" {
		claims["user_id"] = userID
	}
	for k, v := range md {
		if !reservedClaims[k] {
			claims[k] = v
		}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenGeneration, err)
	}
	return signed, nil
}

// MintAccess creates a short-lived access token bound to a device and user
func (s *Service) MintAccess(deviceID, userID string, md Metadata) (string, error) {
	if deviceID == "" {
		return "", ErrMissingDeviceID
	}
	if userID == "" {
		return "", ErrMissingUserID
	}
	return s.mint(deviceID, userID, TypeAccess, s.accessTTL, md)
}

// MintLongLivedAccess is MintAccess with the 24h expiry used by persistent
// integrations
func (s *Service) MintLongLivedAccess(deviceID, userID string, md Metadata) (string, error) {
	if deviceID == "" {
		return "", ErrMissingDeviceID
	}
	if userID == "" {
		return "", ErrMissingUserID
	}
	return s.mint(deviceID, userID, TypeAccess, s.longTTL, md)
}

// MintRefresh creates a refresh token bound only to a device
func (s *Service) MintRefresh(deviceID string, md Metadata) (string, error) {
	if deviceID == "" {
		return "", ErrMissingDeviceID
	}
	return s.mint(deviceID, "", TypeRefresh, s.refreshTTL, md)
}

// MintPair mints an access/refresh pair. Fails atomically: no partial pair
// is ever returned.
func (s *Service) MintPair(deviceID, userID string, md Metadata) (*Pair, error) {
	access, err := s.MintAccess(deviceID, userID, md)
	if err != nil {
		return nil, err
	}
	refresh, err := s.MintRefresh(deviceID, md)
	if err != nil {
		return nil, err
	}
	return &Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int(s.accessTTL.Seconds()),
	}, nil
}

// VerifyAccess verifies an access token, stripping an optional "Bearer "
// prefix first. Requires type "access" plus device and user identity claims.
func (s *Service) VerifyAccess(tokenString string) (*Claims, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	claims, err := s.verify(tokenString, TypeAccess)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, ErrMissingClaims
	}
	return claims, nil
}

// VerifyRefresh verifies a refresh token. Requires type "refresh" and a
// device identity claim.
func (s *Service) VerifyRefresh(tokenString string) (*Claims, error) {
	return s.verify(tokenString, TypeRefresh)
}

func (s *Service) verify(tokenString, wantType string) (*Claims, error) {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrTokenMalformed
	}

	tokenType, _ := mapClaims["type"].(string)
	if tokenType != wantType {
		return nil, ErrWrongTokenType
	}

	deviceID, _ := mapClaims["device_id"].(string)
	if deviceID == "" {
		return nil, ErrMissingClaims
	}
	userID, _ := mapClaims["user_id"].(string)
	scope, _ := mapClaims["scope"].(string)

	iat, _ := mapClaims["iat"].(float64)
	exp, ok := mapClaims["exp"].(float64)
	if !ok {
		return nil, ErrTokenMalformed
	}

	return &Claims{
		DeviceID:  deviceID,
		UserID:    userID,
		TokenType: tokenType,
		Scope:     scope,
		IssuedAt:  time.Unix(int64(iat), 0),
		ExpiresAt: time.Unix(int64(exp), 0),
		Raw:       mapClaims,
	}, nil
}
