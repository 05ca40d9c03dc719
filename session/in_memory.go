package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentcrew/core"
)

type memoryEntry struct {
	log       core.Log
	updatedAt time.Time
}

// InMemoryStore is a volatile Store keeping logs in a process local map. It
// is safe for concurrent access and best suited for tests or ephemeral demo
// servers. Logs are deep-copied on the way in and out, so callers can never
// mutate stored state.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]memoryEntry)}
}

// Load returns a copy of the stored log, or an empty log for an unknown session.
func (s *InMemoryStore) Load(ctx context.Context, sessionID string) (core.Log, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[sessionID]
	if !ok {
		return core.Log{}, nil
	}

	return entry.log.Clone(), nil
}

// Save stores a copy of log.
func (s *InMemoryStore) Save(ctx context.Context, sessionID string, log core.Log) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sessionID] = memoryEntry{log: log.Clone(), updatedAt: time.Now().UTC()}

	return nil
}

// Delete removes a session.
func (s *InMemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)

	return nil
}

// List returns the stored sessions, most recently updated first.
func (s *InMemoryStore) List(_ context.Context) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Info, 0, len(s.sessions))
	for id, entry := range s.sessions {
		out = append(out, Info{SessionID: id, Messages: len(entry.log), UpdatedAt: entry.updatedAt})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})

	return out, nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }
