package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"CampusHub/logger"
)

// wsEntry is one live local connection. gorilla conns tolerate only one
// concurrent writer, so every write goes through wmu.
type wsEntry struct {
	connID string
	userID string
	sock   Socket
	wmu    sync.Mutex
}

func (e *wsEntry) writeJSON(message any, timeout time.Duration) error {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	_ = e.sock.SetWriteDeadline(time.Now().Add(timeout))
	return e.sock.WriteJSON(message)
}

// Manager owns the process-local connection registry: conn-id -> socket
// and user-id -> set of conn ids. Exactly one instance per process,
// constructed in main and passed by reference to every handler.
//
// Invariant: a connection id is present in conns if and only if it is
// present in its owner's byUser set. Both maps are only mutated under mu
// by Connect/Disconnect, as a single critical section.
type Manager struct {
	mu     sync.RWMutex
	conns  map[string]*wsEntry            // conn id -> entry
	byUser map[string]map[string]struct{} // user id -> conn ids

	mirror       PresenceMirror
	writeTimeout time.Duration
}

func NewManager(mirror PresenceMirror, writeTimeout time.Duration) *Manager {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Manager{
		conns:        make(map[string]*wsEntry),
		byUser:       make(map[string]map[string]struct{}),
		mirror:       mirror,
		writeTimeout: writeTimeout,
	}
}

// Connect records an accepted socket in both local maps and mirrors the
// membership into the presence set. The mirror write happens after the
// local registration and may fail; that failure propagates, since
// presence correctness depends on it. The caller tears the connection
// down via Disconnect on error.
func (m *Manager) Connect(ctx context.Context, sock Socket, userID uuid.UUID, connID string) error {
	user := userID.String()
	entry := &wsEntry{connID: connID, userID: user, sock: sock}

	m.mu.Lock()
	m.conns[connID] = entry
	set := m.byUser[user]
	if set == nil {
		set = make(map[string]struct{})
		m.byUser[user] = set
	}
	set[connID] = struct{}{}
	m.mu.Unlock()

	return m.mirror.AddUserConnection(ctx, user, connID)
}

// Disconnect removes the connection from both maps, dropping the user's
// entry entirely once its set is empty, then mirrors the removal.
// Idempotent: unknown connection ids are a no-op locally; the mirror
// removal runs regardless (SREM of an absent member is harmless).
func (m *Manager) Disconnect(ctx context.Context, userID uuid.UUID, connID string) error {
	user := userID.String()

	m.mu.Lock()
	delete(m.conns, connID)
	if set := m.byUser[user]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(m.byUser, user)
		}
	}
	m.mu.Unlock()

	return m.mirror.RemoveUserConnection(ctx, user, connID)
}

// IsConnected reports whether the connection is still registered locally.
func (m *Manager) IsConnected(connID string) bool {
	m.mu.RLock()
	_, ok := m.conns[connID]
	m.mu.RUnlock()
	return ok
}

// SendToConnection delivers a message to one local connection, if it is
// still open. Failures on a concurrently closed socket are logged and
// swallowed: a dead-socket write never takes down the caller.
func (m *Manager) SendToConnection(connID string, message any) {
	m.mu.RLock()
	entry, ok := m.conns[connID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	if err := entry.writeJSON(message, m.writeTimeout); err != nil {
		logger.Warn("send to connection failed",
			zap.String("conn_id", connID),
			zap.String("user_id", entry.userID),
			zap.Error(err))
	}
}

// SendToUser fans out to every connection in the user's local set only.
// Cross-process delivery is the Event Publisher's job via the backplane.
func (m *Manager) SendToUser(userID uuid.UUID, message any) {
	user := userID.String()
	m.mu.RLock()
	connIDs := make([]string, 0, len(m.byUser[user]))
	for id := range m.byUser[user] {
		connIDs = append(connIDs, id)
	}
	m.mu.RUnlock()

	for _, id := range connIDs {
		m.SendToConnection(id, message)
	}
}

// Broadcast fans out to every local connection regardless of owner.
// Process-local administrative paths only; the global topic is delivered
// per process by each connection's own listener.
func (m *Manager) Broadcast(message any) {
	m.mu.RLock()
	entries := make([]*wsEntry, 0, len(m.conns))
	for _, e := range m.conns {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	for _, e := range entries {
		if err := e.writeJSON(message, m.writeTimeout); err != nil {
			logger.Warn("broadcast write failed",
				zap.String("conn_id", e.connID),
				zap.String("user_id", e.userID),
				zap.Error(err))
		}
	}
}

// ConnectionCount returns the number of live local connections.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// UserCount returns the number of users with at least one local connection.
func (m *Manager) UserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser)
}

// Close force-closes every local socket. Used on process shutdown; each
// connection's read loop then observes the close and runs its own
// teardown.
func (m *Manager) Close() {
	m.mu.RLock()
	entries := make([]*wsEntry, 0, len(m.conns))
	for _, e := range m.conns {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	for _, e := range entries {
		_ = e.sock.Close()
	}
}
