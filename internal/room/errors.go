package room

import "errors"

var (
	ErrInvalidTransition    = errors.New("action not valid for current room status")
	ErrPerformerNotFound    = errors.New("performer not in room")
	ErrDuplicatePerformer   = errors.New("performer already in room")
	ErrGeneratorUnavailable = errors.New("directive generator unavailable")
	ErrNoCurrentDirective   = errors.New("no current directive of that kind")
)
