package store

import "errors"

var (
	// ErrDeviceNotFound is returned when no matching unexpired device exists
	ErrDeviceNotFound = errors.New("device not found")

	// ErrAlreadyAuthorized is returned by AuthorizeDevice when the record
	// was already bound to a user (0 rows updated by the conditional update).
	ErrAlreadyAuthorized = errors.New("device already authorized")

	// ErrDuplicateCode is returned by CreateDevice when a generated
	// device or user code collides with an existing row.
	ErrDuplicateCode = errors.New("duplicate device or user code")
)
