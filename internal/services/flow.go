package services

import (
	"context"
	"errors"
	"time"

	"github.com/devicegate/devicegate/internal/metrics"
	"github.com/devicegate/devicegate/internal/token"
)

var (
	// ErrInvalidGrant covers unknown, expired and revoked grants. Unknown
	// and expired codes collapse to the same signal so callers cannot
	// probe which codes exist.
	ErrInvalidGrant = errors.New("invalid_grant")

	// ErrAuthorizationPending is the expected, retryable outcome of
	// polling before the user has authorized the device. Not a failure.
	ErrAuthorizationPending = errors.New("authorization_pending")

	// ErrUnauthenticated is returned when the current-session identity
	// sentinel cannot be resolved to a user
	ErrUnauthenticated = errors.New("unauthenticated")
)

// IdentityResolver resolves the identity of the currently authenticated
// session from a request context. Used when authorize is called with the
// sentinel empty user ID.
type IdentityResolver func(ctx context.Context) (string, error)

// FlowService composes the device registry and the token service into the
// four boundary operations: register, authorize, poll, refresh.
type FlowService struct {
	devices         *DeviceService
	tokens          *token.Service
	metrics         metrics.Recorder
	resolveIdentity IdentityResolver
}

func NewFlowService(
	devices *DeviceService,
	tokens *token.Service,
	m metrics.Recorder,
	resolver IdentityResolver,
) *FlowService {
	return &FlowService{
		devices:         devices,
		tokens:          tokens,
		metrics:         m,
		resolveIdentity: resolver,
	}
}

// Register delegates directly to the device registry
func (s *FlowService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	return s.devices.Register(ctx, in)
}

// Authorize binds a device to a user identity. An empty userID means
// "the identity of the currently authenticated session" and is resolved
// through the injected resolver.
func (s *FlowService) Authorize(ctx context.Context, userCode, userID string) error {
	if userID == "" {
		if s.resolveIdentity == nil {
			return ErrUnauthenticated
		}
		resolved, err := s.resolveIdentity(ctx)
		if err != nil || resolved == "" {
			return ErrUnauthenticated
		}
		userID = resolved
	}
	return s.devices.Authorize(ctx, userCode, userID)
}

// ExchangeDeviceCode is the poll operation: it reads registry state and
// mints a pair, never mutating authorization state. Repeated polling after
// authorization is safe; each call mints a fresh pair.
func (s *FlowService) ExchangeDeviceCode(ctx context.Context, deviceCode string) (*token.Pair, error) {
	d, err := s.devices.GetByDeviceCode(deviceCode)
	if err != nil {
		if errors.Is(err, ErrDeviceCodeNotFound) {
			s.metrics.RecordDeviceCodeValidation("invalid")
			return nil, ErrInvalidGrant
		}
		return nil, err
	}

	if !d.Authorized {
		s.metrics.RecordDeviceCodeValidation("pending")
		return nil, ErrAuthorizationPending
	}
	s.metrics.RecordDeviceCodeValidation("success")

	start := time.Now()
	pair, err := s.tokens.MintPair(d.ID, d.UserID, token.Metadata{"scope": d.Scopes})
	if err != nil {
		return nil, err
	}
	pair.Scope = d.Scopes

	s.devices.TouchLastSeen(d.ID)

	duration := time.Since(start)
	s.metrics.RecordTokenIssued(token.TypeAccess, "device_code", duration)
	s.metrics.RecordTokenIssued(token.TypeRefresh, "device_code", duration)

	return pair, nil
}

// Refresh exchanges a refresh token for a fresh pair. The owning device
// must still exist and be authorized: deleting or never authorizing a
// device makes its refresh tokens permanently unusable even before they
// expire.
func (s *FlowService) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, ErrInvalidGrant
	}

	d, err := s.devices.GetByID(claims.DeviceID)
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		if errors.Is(err, ErrDeviceNotFound) {
			return nil, ErrInvalidGrant
		}
		// Infrastructure faults are not grant failures; the client's
		// refresh token may still be perfectly valid.
		return nil, err
	}
	if !d.Authorized {
		s.metrics.RecordTokenRefresh(false)
		return nil, ErrInvalidGrant
	}

	// Carry the original issue time forward for the audit trail
	originalIat := claims.IssuedAt.Unix()
	if v, ok := claims.Raw["original_iat"].(float64); ok {
		originalIat = int64(v)
	}

	pair, err := s.tokens.MintPair(d.ID, d.UserID, token.Metadata{
		"scope":        d.Scopes,
		"original_iat": originalIat,
	})
	if err != nil {
		s.metrics.RecordTokenRefresh(false)
		return nil, err
	}
	pair.Scope = d.Scopes

	s.devices.TouchLastSeen(d.ID)
	s.metrics.RecordTokenRefresh(true)

	return pair, nil
}
