package realtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Socket is the write side of one accepted websocket connection.
// *websocket.Conn satisfies it; tests substitute fakes.
type Socket interface {
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// PresenceMirror replicates the local user -> connection-id mapping into
// the shared backplane so presence can be queried across processes. Best
// effort: delivery never depends on it.
type PresenceMirror interface {
	AddUserConnection(ctx context.Context, userID, connID string) error
	RemoveUserConnection(ctx context.Context, userID, connID string) error
}

// PresenceQuerier is the read side of the mirror, used by the presence
// endpoints.
type PresenceQuerier interface {
	UserConnections(ctx context.Context, userID string) ([]string, error)
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// MembershipResolver answers which channel topics a user should receive.
// The only call this subsystem makes into the persistence layer.
type MembershipResolver interface {
	// ChannelTopics returns the topic strings for every channel the user
	// is an active, non-banned member of.
	ChannelTopics(ctx context.Context, userID uuid.UUID) ([]string, error)
	// Username returns the user's display name for typing indicators.
	Username(ctx context.Context, userID uuid.UUID) (string, error)
}

// TokenVerifier authenticates the connection-establishment token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (uuid.UUID, error)
}
