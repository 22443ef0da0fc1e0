package types

import "regexp"

var (
	userIDRegex   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	roomNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
	actionRegex   = regexp.MustCompile(`^[a-zA-Z]+$`)
)

// MaxInboundBytes bounds a single inbound message.
const MaxInboundBytes = 65536

// IsValidUserID checks identity format: 1-64 chars of [a-zA-Z0-9_-],
// which covers both UUIDs and external subject claims.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 64 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidRoomName checks room name format: lowercase word, digits and
// hyphens, up to 64 chars.
func IsValidRoomName(name string) bool {
	if len(name) < 1 || len(name) > 64 {
		return false
	}
	return roomNameRegex.MatchString(name)
}

// IsValidAction checks the dispatch tag format. Unknown but well-formed
// actions dispatch to the default no-op handler; malformed ones are
// rejected before dispatch.
func IsValidAction(action string) bool {
	if len(action) < 1 || len(action) > 64 {
		return false
	}
	return actionRegex.MatchString(action)
}

// Validate rejects envelopes that cannot be dispatched at all. Handlers do
// their own field-level validation.
func (e *Envelope) Validate() error {
	if !IsValidAction(e.Action) {
		return ErrInvalidAction
	}
	if e.RoomName != "" && !IsValidRoomName(e.RoomName) {
		return ErrInvalidRoomName
	}
	if e.UserID != "" && !IsValidUserID(e.UserID) {
		return ErrInvalidUserID
	}
	return nil
}
