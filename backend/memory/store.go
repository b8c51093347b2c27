package memory

import "context"

// Store persists session state. Implementations return copies, so callers may
// mutate what they get without affecting stored data.
type Store interface {
	Get(ctx context.Context, sessionID string) (*State, error)
	Put(ctx context.Context, state *State) error
	Delete(ctx context.Context, sessionID string) error
	Close() error
}
