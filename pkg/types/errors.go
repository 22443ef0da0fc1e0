package types

import "errors"

var (
	ErrUnknownAttribute = errors.New("unknown personality attribute")
	ErrInvalidUserID    = errors.New("invalid user ID format")
	ErrInvalidRoomName  = errors.New("invalid room name format")
	ErrInvalidAction    = errors.New("invalid action format")
	ErrMessageTooLarge  = errors.New("message exceeds size limit")
)
