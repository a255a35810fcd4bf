package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Device is one device registration tracked through the authorization flow.
// The device secret is stored only as a bcrypt hash; the plaintext is
// returned exactly once, in the registration response.
type Device struct {
	ID               string `gorm:"primaryKey"`
	DeviceSecretHash string `gorm:"not null"`
	DeviceCode       string `gorm:"uniqueIndex;not null"`
	UserCode         string `gorm:"uniqueIndex;not null"`
	DeviceName       string
	DeviceType       string
	ClientID         string `gorm:"index"`
	Scopes           string // space-separated scopes
	Audience         string
	ExpiresAt        time.Time `gorm:"index"`
	Authorized       bool      `gorm:"default:false"`
	UserID           string // filled after authorization
	AuthorizedAt     *time.Time
	CreatedAt        time.Time
	LastSeen         time.Time
}

func (d *Device) IsExpired() bool {
	return time.Now().After(d.ExpiresAt)
}

// ValidateDeviceSecret compares a plaintext secret against the stored hash
func (d *Device) ValidateDeviceSecret(secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(d.DeviceSecretHash), []byte(secret)) == nil
}
