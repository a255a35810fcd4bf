package store

import (
	"errors"
	"strings"
	"time"

	"github.com/devicegate/devicegate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Store struct {
	db *gorm.DB
}

func New(driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.Device{}); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Device operations

// CreateDevice persists a new pending device record
func (s *Store) CreateDevice(d *models.Device) error {
	if err := s.db.Create(d).Error; err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateCode
		}
		return err
	}
	return nil
}

// GetDeviceByCode retrieves an unexpired device by its device code.
// Expired-but-not-yet-swept records are treated as absent.
func (s *Store) GetDeviceByCode(deviceCode string) (*models.Device, error) {
	var d models.Device
	err := s.db.Where("device_code = ? AND expires_at > ?", deviceCode, time.Now()).
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetDeviceByUserCode retrieves an unexpired device by its user code
func (s *Store) GetDeviceByUserCode(userCode string) (*models.Device, error) {
	var d models.Device
	err := s.db.Where("user_code = ? AND expires_at > ?", userCode, time.Now()).
		First(&d).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &d, nil
}

// GetDeviceByID retrieves a device by its ID, regardless of record expiry.
// Refresh validity is governed by token expiry, not record expiry.
func (s *Store) GetDeviceByID(id string) (*models.Device, error) {
	var d models.Device
	if err := s.db.Where("id = ?", id).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &d, nil
}

// AuthorizeDevice atomically binds an unexpired pending device to a user.
// The conditional update is the sole source of mutual exclusion: under
// concurrent attempts on the same user code exactly one succeeds, the
// loser observes ErrAlreadyAuthorized.
func (s *Store) AuthorizeDevice(userCode, userID string) error {
	now := time.Now()
	res := s.db.Model(&models.Device{}).
		Where("user_code = ? AND authorized = ? AND expires_at > ?", userCode, false, now).
		Updates(map[string]any{
			"authorized":    true,
			"user_id":       userID,
			"authorized_at": now,
			"last_seen":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Disambiguate: an unexpired authorized row lost the race,
		// anything else is an unknown or expired code.
		var d models.Device
		err := s.db.Where("user_code = ? AND expires_at > ?", userCode, now).
			First(&d).Error
		if err == nil && d.Authorized {
			return ErrAlreadyAuthorized
		}
		return ErrDeviceNotFound
	}
	return nil
}

// TouchLastSeen updates the last-seen timestamp of a device
func (s *Store) TouchLastSeen(deviceID string) error {
	return s.db.Model(&models.Device{}).
		Where("id = ?", deviceID).
		Update("last_seen", time.Now()).Error
}

// DeleteDevice removes a device record, revoking all its future refreshes
func (s *Store) DeleteDevice(id string) error {
	return s.db.Where("id = ?", id).Delete(&models.Device{}).Error
}

// DeleteExpiredUserCode removes a stale unauthorized record holding a user
// code, freeing the code for reuse after a unique-index collision.
func (s *Store) DeleteExpiredUserCode(userCode string) error {
	return s.db.Where("user_code = ? AND expires_at < ? AND authorized = ?",
		userCode, time.Now(), false).
		Delete(&models.Device{}).Error
}

// SweepExpiredDevices deletes records that expired without ever being
// authorized. Authorized records are never touched by the sweep.
func (s *Store) SweepExpiredDevices() (int64, error) {
	res := s.db.Where("expires_at < ? AND authorized = ?", time.Now(), false).
		Delete(&models.Device{})
	return res.RowsAffected, res.Error
}

// CountDevices returns total and pending-authorization device counts
func (s *Store) CountDevices() (total, pending int64, err error) {
	now := time.Now()
	if err = s.db.Model(&models.Device{}).
		Where("expires_at > ? OR authorized = ?", now, true).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = s.db.Model(&models.Device{}).
		Where("expires_at > ? AND authorized = ?", now, false).
		Count(&pending).Error; err != nil {
		return 0, 0, err
	}
	return total, pending, nil
}

// Health checks the database connection
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// DB returns the underlying GORM database connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// isDuplicateKeyError detects unique-constraint violations across drivers
func isDuplicateKeyError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// sqlite driver versions that predate gorm error translation
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
