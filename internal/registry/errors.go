package registry

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
)
