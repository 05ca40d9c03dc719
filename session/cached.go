package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/maypok86/otter"

	"github.com/hupe1980/agentcrew/core"
)

// CachedStore is a write-through cache in front of another Store. Loads of
// recently used sessions are served from memory; every Save goes to the
// underlying store first and is cached only once it succeeded.
//
// A Load that misses fills the cache only if no Save or Delete of the same
// session happened while it read the underlying store, so an overlapping
// read never caches a log older than the stored one.
type CachedStore struct {
	inner Store
	cache otter.Cache[string, core.Log]

	mu       sync.Mutex
	versions map[string]uint64
}

// NewCachedStore wraps inner with a cache holding up to capacity sessions.
func NewCachedStore(inner Store, capacity int) (*CachedStore, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}

	cache, err := otter.MustBuilder[string, core.Log](capacity).Build()
	if err != nil {
		return nil, fmt.Errorf("build checkpoint cache: %w", err)
	}

	return &CachedStore{inner: inner, cache: cache, versions: make(map[string]uint64)}, nil
}

// Load serves the log from the cache or falls back to the underlying store.
func (s *CachedStore) Load(ctx context.Context, sessionID string) (core.Log, error) {
	if log, ok := s.cache.Get(sessionID); ok {
		return log.Clone(), nil
	}

	s.mu.Lock()
	version := s.versions[sessionID]
	s.mu.Unlock()

	log, err := s.inner.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.versions[sessionID] == version {
		s.cache.Set(sessionID, log.Clone())
	}
	s.mu.Unlock()

	return log, nil
}

// Save writes through to the underlying store.
func (s *CachedStore) Save(ctx context.Context, sessionID string, log core.Log) error {
	err := s.inner.Save(ctx, sessionID, log)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.versions[sessionID]++
	if err != nil {
		s.cache.Delete(sessionID)
		return err
	}

	s.cache.Set(sessionID, log.Clone())

	return nil
}

// Delete removes the session from the cache and the underlying store.
func (s *CachedStore) Delete(ctx context.Context, sessionID string) error {
	err := s.inner.Delete(ctx, sessionID)

	s.mu.Lock()
	s.versions[sessionID]++
	s.cache.Delete(sessionID)
	s.mu.Unlock()

	return err
}

// List delegates to the underlying store.
func (s *CachedStore) List(ctx context.Context) ([]Info, error) {
	return s.inner.List(ctx)
}

// Cached reports whether the session is currently cached.
func (s *CachedStore) Cached(sessionID string) bool {
	return s.cache.Has(sessionID)
}

// Close releases the cache and closes the underlying store.
func (s *CachedStore) Close() error {
	s.cache.Close()
	return s.inner.Close()
}
