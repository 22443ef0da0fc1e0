package interfaces

import (
	"context"

	"ensemble/pkg/types"
)

// Store is the persistent record collaborator. Records are read and written
// atomically one at a time; there are no cross-record guarantees.
type Store interface {
	SaveProfile(ctx context.Context, profile types.Profile) error
	GetProfile(ctx context.Context, userID string) (*types.Profile, error)
	SaveSessionLog(ctx context.Context, log *types.SessionLog) error
	ListSessionLogs(ctx context.Context, roomName string) ([]*types.SessionLog, error)
	Close() error
}
