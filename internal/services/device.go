package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/devicegate/devicegate/internal/config"
	"github.com/devicegate/devicegate/internal/metrics"
	"github.com/devicegate/devicegate/internal/models"
	"github.com/devicegate/devicegate/internal/store"
	"github.com/devicegate/devicegate/internal/util"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrDeviceCodeNotFound = errors.New("device code not found")
	ErrUserCodeNotFound   = errors.New("user code not found")
	ErrDeviceNotFound     = errors.New("device not found")
	ErrAlreadyAuthorized  = errors.New("device already authorized")
)

const (
	// userCodeAlphabet avoids visually ambiguous characters (0, O, I)
	userCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ123456789"
	userCodeLength   = 6

	deviceCodeHexLength = 16 // 8 random bytes, hex encoded
	deviceSecretBytes   = 32

	// createAttempts bounds the regenerate-on-collision loop
	createAttempts = 3
)

// DeviceService owns device-authorization records and their lifecycle.
// It is the single writer of record state; all mutations are single atomic
// conditional updates in the store.
type DeviceService struct {
	store   *store.Store
	config  *config.Config
	metrics metrics.Recorder
}

func NewDeviceService(s *store.Store, cfg *config.Config, m metrics.Recorder) *DeviceService {
	return &DeviceService{store: s, config: cfg, metrics: m}
}

// RegisterInput carries the caller-supplied registration metadata
type RegisterInput struct {
	DeviceName string
	DeviceType string
	ClientID   string
	Scope      string
	Audience   string
}

// RegisterResult is the public-facing subset returned from registration.
// DeviceSecret is the plaintext secret, returned here and never again.
type RegisterResult struct {
	Device                  *models.Device
	DeviceSecret            string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               int
	Interval                int
}

// Register creates a new pending device record and returns its codes
func (s *DeviceService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	secret, err := util.CryptoRandomBase64(deviceSecretBytes)
	if err != nil {
		s.metrics.RecordDeviceRegistered(false)
		return nil, fmt.Errorf("failed to generate device secret: %w", err)
	}
	secretHash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		s.metrics.RecordDeviceRegistered(false)
		return nil, fmt.Errorf("failed to hash device secret: %w", err)
	}

	scope := in.Scope
	if scope == "" {
		scope = strings.Join(s.config.ResourceScopes, " ")
	}

	var device *models.Device
	for attempt := 0; attempt < createAttempts; attempt++ {
		deviceCode, err := util.CryptoRandomHex(deviceCodeHexLength)
		if err != nil {
			s.metrics.RecordDeviceRegistered(false)
			return nil, fmt.Errorf("failed to generate device code: %w", err)
		}
		userCode := generateUserCode()

		candidate := &models.Device{
			ID:               uuid.New().String(),
			DeviceSecretHash: string(secretHash),
			DeviceCode:       deviceCode,
			UserCode:         userCode,
			DeviceName:       in.DeviceName,
			DeviceType:       in.DeviceType,
			ClientID:         in.ClientID,
			Scopes:           scope,
			Audience:         in.Audience,
			ExpiresAt:        time.Now().Add(s.config.DeviceCodeExpiration),
			LastSeen:         time.Now(),
		}

		err = s.store.CreateDevice(candidate)
		if err == nil {
			device = candidate
			break
		}
		if !errors.Is(err, store.ErrDuplicateCode) {
			s.metrics.RecordDeviceRegistered(false)
			return nil, err
		}
		// A collision with an expired-but-unswept record frees the code;
		// a collision with a live record just regenerates.
		_ = s.store.DeleteExpiredUserCode(userCode)
	}
	if device == nil {
		s.metrics.RecordDeviceRegistered(false)
		return nil, fmt.Errorf("failed to allocate unique device codes after %d attempts", createAttempts)
	}

	s.metrics.RecordDeviceRegistered(true)

	verificationURI := s.config.BaseURL + "/device"
	return &RegisterResult{
		Device:                  device,
		DeviceSecret:            secret,
		VerificationURI:         verificationURI,
		VerificationURIComplete: verificationURI + "?user_code=" + FormatUserCode(device.UserCode),
		ExpiresIn:               int(s.config.DeviceCodeExpiration.Seconds()),
		Interval:                s.config.PollingInterval,
	}, nil
}

// GetByDeviceCode retrieves an unexpired device by device code.
// Used by polling; expired records are treated as absent.
func (s *DeviceService) GetByDeviceCode(deviceCode string) (*models.Device, error) {
	// Validate shape before touching storage (16 hex characters)
	if len(deviceCode) != deviceCodeHexLength {
		return nil, ErrDeviceCodeNotFound
	}
	for _, x := range []byte(deviceCode) {
		if x < '0' || (x > '9' && x < 'a') || x > 'f' {
			return nil, ErrDeviceCodeNotFound
		}
	}

	d, err := s.store.GetDeviceByCode(deviceCode)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return nil, ErrDeviceCodeNotFound
		}
		return nil, err
	}
	return d, nil
}

// GetByUserCode retrieves an unexpired device by user code
func (s *DeviceService) GetByUserCode(userCode string) (*models.Device, error) {
	d, err := s.store.GetDeviceByUserCode(NormalizeUserCode(userCode))
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return nil, ErrUserCodeNotFound
		}
		return nil, err
	}
	return d, nil
}

// GetByID retrieves a device regardless of record expiry. Used by refresh,
// where only token expiry governs validity.
func (s *DeviceService) GetByID(deviceID string) (*models.Device, error) {
	d, err := s.store.GetDeviceByID(deviceID)
	if err != nil {
		if errors.Is(err, store.ErrDeviceNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return d, nil
}

// Authorize binds an unexpired pending device to a user identity.
// Safe under concurrent attempts: exactly one succeeds, the loser
// observes ErrAlreadyAuthorized.
func (s *DeviceService) Authorize(ctx context.Context, userCode, userID string) error {
	err := s.store.AuthorizeDevice(NormalizeUserCode(userCode), userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDeviceNotFound):
			return ErrUserCodeNotFound
		case errors.Is(err, store.ErrAlreadyAuthorized):
			return ErrAlreadyAuthorized
		}
		return err
	}
	s.metrics.RecordDeviceAuthorized()
	return nil
}

// TouchLastSeen is best-effort advisory telemetry: failure is logged,
// never raised.
func (s *DeviceService) TouchLastSeen(deviceID string) {
	if err := s.store.TouchLastSeen(deviceID); err != nil {
		log.Printf("[Device] failed to update last_seen for device=%s: %v", deviceID, err)
	}
}

// Revoke deletes a device record, permanently invalidating all refresh
// tokens bound to it.
func (s *DeviceService) Revoke(deviceID string) error {
	return s.store.DeleteDevice(deviceID)
}

// SweepExpired deletes records that expired without being authorized
func (s *DeviceService) SweepExpired(ctx context.Context) (int64, error) {
	deleted, err := s.store.SweepExpiredDevices()
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.metrics.RecordSweepDeleted(deleted)
	}
	return deleted, nil
}

// generateUserCode creates a short human-typeable code from the
// restricted alphabet
func generateUserCode() string {
	code := make([]byte, userCodeLength)
	for i := range code {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(userCodeAlphabet))))
		code[i] = userCodeAlphabet[n.Int64()]
	}
	return string(code)
}

// NormalizeUserCode uppercases a user code and strips the display dash
func NormalizeUserCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, "-", ""))
}

// FormatUserCode formats a user code for display (e.g., "ABCDEF" -> "ABC-DEF")
func FormatUserCode(code string) string {
	if len(code) != userCodeLength {
		return code
	}
	return code[:3] + "-" + code[3:]
}
