package memory

import (
	"context"
	"sync"
)

// MemoryStore keeps sessions for the lifetime of the process only.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*State
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*State),
	}
}

func (s *MemoryStore) Get(ctx context.Context, sessionID string) (*State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return nil, &NotFoundError{SessionID: sessionID}
	}
	return state.Clone(), nil
}

func (s *MemoryStore) Put(ctx context.Context, state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[state.ID] = state.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
