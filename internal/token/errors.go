package token

import "errors"

var (
	// ErrTokenGeneration indicates token signing failed
	ErrTokenGeneration = errors.New("failed to generate token")

	// ErrMissingDeviceID indicates a mint call without a device ID
	ErrMissingDeviceID = errors.New("device ID is required")

	// ErrMissingUserID indicates an access-token mint call without a user ID
	ErrMissingUserID = errors.New("user ID is required")

	// Verification failures

	// ErrTokenExpired indicates the token's exp has passed
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed indicates the signature or structure is invalid
	ErrTokenMalformed = errors.New("token malformed")

	// ErrWrongTokenType indicates an access token presented where a refresh
	// token is required, or vice versa
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrMissingClaims indicates required identity claims are absent
	ErrMissingClaims = errors.New("token missing required claims")
)
