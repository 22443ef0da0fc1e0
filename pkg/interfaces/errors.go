package interfaces

import "errors"

// Shared collaborator errors, defined here so callers can match them
// without importing concrete implementations.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrLogNotFound     = errors.New("session log not found")

	ErrTokenExpired   = errors.New("token expired")
	ErrTokenInvalid   = errors.New("token invalid")
	ErrTokenMalformed = errors.New("token malformed")
)
