package storage

import (
	"context"
	"sync"
)

// MemoryPresenceStore is an in-process presence mirror for tests and
// single-node development, where no shared backplane exists to mirror
// into.
type MemoryPresenceStore struct {
	mu   sync.Mutex
	sets map[string]map[string]struct{}
}

func NewMemoryPresenceStore() *MemoryPresenceStore {
	return &MemoryPresenceStore{sets: make(map[string]map[string]struct{})}
}

func (s *MemoryPresenceStore) AddUserConnection(_ context.Context, userID, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.sets[userID]
	if set == nil {
		set = make(map[string]struct{})
		s.sets[userID] = set
	}
	set[connID] = struct{}{}
	return nil
}

func (s *MemoryPresenceStore) RemoveUserConnection(_ context.Context, userID, connID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set := s.sets[userID]; set != nil {
		delete(set, connID)
		if len(set) == 0 {
			delete(s.sets, userID)
		}
	}
	return nil
}

func (s *MemoryPresenceStore) UserConnections(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sets[userID]))
	for id := range s.sets[userID] {
		out = append(out, id)
	}
	return out, nil
}

func (s *MemoryPresenceStore) IsOnline(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets[userID]) > 0, nil
}
