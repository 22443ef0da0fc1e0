package hub

import "errors"

var (
	ErrTokenRequired = errors.New("token required")
	ErrUnauthorized  = errors.New("unauthorized")
)
