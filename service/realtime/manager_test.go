package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"CampusHub/service/storage"
)

type fakeSocket struct {
	mu     sync.Mutex
	frames []any
	closed bool
}

func (s *fakeSocket) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("write on closed socket")
	}
	s.frames = append(s.frames, v)
	return nil
}

func (s *fakeSocket) SetWriteDeadline(time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

type failingMirror struct{}

func (failingMirror) AddUserConnection(context.Context, string, string) error {
	return errors.New("mirror down")
}
func (failingMirror) RemoveUserConnection(context.Context, string, string) error {
	return errors.New("mirror down")
}

func newTestManager() (*Manager, *storage.MemoryPresenceStore) {
	mirror := storage.NewMemoryPresenceStore()
	return NewManager(mirror, time.Second), mirror
}

func TestConnectDisconnectConsistency(t *testing.T) {
	ctx := context.Background()
	mgr, mirror := newTestManager()
	user := uuid.New()

	sockA, sockB := &fakeSocket{}, &fakeSocket{}
	if err := mgr.Connect(ctx, sockA, user, "A"); err != nil {
		t.Fatalf("connect A: %v", err)
	}
	if err := mgr.Connect(ctx, sockB, user, "B"); err != nil {
		t.Fatalf("connect B: %v", err)
	}

	if got := mgr.ConnectionCount(); got != 2 {
		t.Fatalf("ConnectionCount = %d, want 2", got)
	}
	if got := mgr.UserCount(); got != 1 {
		t.Fatalf("UserCount = %d, want 1", got)
	}
	if !mgr.IsConnected("A") || !mgr.IsConnected("B") {
		t.Fatal("both connections should be registered")
	}

	if err := mgr.Disconnect(ctx, user, "A"); err != nil {
		t.Fatalf("disconnect A: %v", err)
	}
	if mgr.IsConnected("A") {
		t.Fatal("A should be gone")
	}
	if got := mgr.UserCount(); got != 1 {
		t.Fatalf("UserCount after first disconnect = %d, want 1", got)
	}

	if err := mgr.Disconnect(ctx, user, "B"); err != nil {
		t.Fatalf("disconnect B: %v", err)
	}
	// The user entry must disappear entirely, not stay as an empty set.
	if got := mgr.UserCount(); got != 0 {
		t.Fatalf("UserCount after last disconnect = %d, want 0", got)
	}
	if online, _ := mirror.IsOnline(ctx, user.String()); online {
		t.Fatal("mirror still reports user online")
	}
}

func TestSendToUserFanOut(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager()
	user, other := uuid.New(), uuid.New()

	sockA, sockB, sockOther := &fakeSocket{}, &fakeSocket{}, &fakeSocket{}
	_ = mgr.Connect(ctx, sockA, user, "A")
	_ = mgr.Connect(ctx, sockB, user, "B")
	_ = mgr.Connect(ctx, sockOther, other, "C")

	mgr.SendToUser(user, Envelope{Type: EventNotification})

	if sockA.frameCount() != 1 || sockB.frameCount() != 1 {
		t.Fatalf("fan-out missed a connection: A=%d B=%d", sockA.frameCount(), sockB.frameCount())
	}
	if sockOther.frameCount() != 0 {
		t.Fatalf("other user's socket received %d frames", sockOther.frameCount())
	}

	_ = mgr.Disconnect(ctx, user, "A")
	mgr.SendToUser(user, Envelope{Type: EventNotification})

	if sockA.frameCount() != 1 {
		t.Fatal("disconnected socket received a frame")
	}
	if sockB.frameCount() != 2 {
		t.Fatalf("live socket frames = %d, want 2", sockB.frameCount())
	}
}

func TestSendToUserAfterLastDisconnectIsNoop(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager()
	user := uuid.New()

	sock := &fakeSocket{}
	_ = mgr.Connect(ctx, sock, user, "A")
	_ = mgr.Disconnect(ctx, user, "A")

	mgr.SendToUser(user, Envelope{Type: EventNotification})
	if sock.frameCount() != 0 {
		t.Fatal("send after disconnect delivered a frame")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager()
	user := uuid.New()

	// Never-connected id is a no-op, not an error.
	if err := mgr.Disconnect(ctx, user, "ghost"); err != nil {
		t.Fatalf("disconnect unknown: %v", err)
	}

	_ = mgr.Connect(ctx, &fakeSocket{}, user, "A")
	if err := mgr.Disconnect(ctx, user, "A"); err != nil {
		t.Fatalf("first disconnect: %v", err)
	}
	if err := mgr.Disconnect(ctx, user, "A"); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
	if got := mgr.ConnectionCount(); got != 0 {
		t.Fatalf("ConnectionCount = %d, want 0", got)
	}
}

func TestConnectMirrorFailurePropagates(t *testing.T) {
	mgr := NewManager(failingMirror{}, time.Second)
	err := mgr.Connect(context.Background(), &fakeSocket{}, uuid.New(), "A")
	if err == nil {
		t.Fatal("mirror failure must propagate from Connect")
	}
}

func TestSendToConnectionSwallowsDeadSocket(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager()
	user := uuid.New()

	sock := &fakeSocket{}
	_ = mgr.Connect(ctx, sock, user, "A")
	_ = sock.Close()

	// Must not panic or surface the write error.
	mgr.SendToConnection("A", Envelope{Type: EventNotification})
	mgr.SendToConnection("unknown", Envelope{Type: EventNotification})
}

func TestBroadcastReachesAllLocalConnections(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager()

	socks := []*fakeSocket{{}, {}, {}}
	_ = mgr.Connect(ctx, socks[0], uuid.New(), "A")
	_ = mgr.Connect(ctx, socks[1], uuid.New(), "B")
	_ = mgr.Connect(ctx, socks[2], uuid.New(), "C")

	mgr.Broadcast(Envelope{Type: EventNotification})
	for i, s := range socks {
		if s.frameCount() != 1 {
			t.Fatalf("socket %d frames = %d, want 1", i, s.frameCount())
		}
	}
}
