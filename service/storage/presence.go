package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// PresenceStore mirrors the local user -> connection-id mapping into Redis
// so other gateway processes can answer "does user X have any live
// connection anywhere". The mirror is best effort: a cross-process reader
// may observe a connection before it is mirrored or after its process
// died; delivery never depends on it.
type PresenceStore struct {
	rdb redis.UniversalClient
}

func NewPresenceStore(rdb redis.UniversalClient) *PresenceStore {
	return &PresenceStore{rdb: rdb}
}

// presence key: user_connections:<user>
// Value: set of connection ids across all gateway processes.
func presenceKey(user string) string { return "user_connections:" + user }

// AddUserConnection records a connection id in the user's presence set.
func (s *PresenceStore) AddUserConnection(ctx context.Context, userID, connID string) error {
	if err := s.rdb.SAdd(ctx, presenceKey(userID), connID).Err(); err != nil {
		return errors.Wrapf(err, "presence add user=%s conn=%s", userID, connID)
	}
	return nil
}

// RemoveUserConnection drops a connection id from the user's presence set.
func (s *PresenceStore) RemoveUserConnection(ctx context.Context, userID, connID string) error {
	if err := s.rdb.SRem(ctx, presenceKey(userID), connID).Err(); err != nil {
		return errors.Wrapf(err, "presence remove user=%s conn=%s", userID, connID)
	}
	return nil
}

// UserConnections lists the user's connection ids across all processes.
func (s *PresenceStore) UserConnections(ctx context.Context, userID string) ([]string, error) {
	members, err := s.rdb.SMembers(ctx, presenceKey(userID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "presence members user=%s", userID)
	}
	return members, nil
}

// IsOnline reports whether any process holds a live connection for the user.
func (s *PresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := s.rdb.SCard(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, errors.Wrapf(err, "presence card user=%s", userID)
	}
	return n > 0, nil
}
