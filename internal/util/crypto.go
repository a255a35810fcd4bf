package util

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
)

// CryptoRandomBytes generates cryptographically secure random bytes
func CryptoRandomBytes(length int64) ([]byte, error) {
	buf := make([]byte, length)
	_, err := rand.Read(buf)
	return buf, err
}

// CryptoRandomHex generates a random hex string of the given length
func CryptoRandomHex(length int) (string, error) {
	bytes, err := CryptoRandomBytes(int64((length + 1) / 2))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}

// CryptoRandomBase64 generates base64-encoded random bytes
func CryptoRandomBase64(numBytes int64) (string, error) {
	bytes, err := CryptoRandomBytes(numBytes)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(bytes), nil
}
