package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestDevice_IsExpired(t *testing.T) {
	d := &Device{ExpiresAt: time.Now().Add(time.Minute)}
	assert.False(t, d.IsExpired())

	d.ExpiresAt = time.Now().Add(-time.Minute)
	assert.True(t, d.IsExpired())
}

func TestDevice_ValidateDeviceSecret(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("the-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	d := &Device{DeviceSecretHash: string(hash)}
	assert.True(t, d.ValidateDeviceSecret("the-secret"))
	assert.False(t, d.ValidateDeviceSecret("wrong"))
	assert.False(t, d.ValidateDeviceSecret(""))
}
