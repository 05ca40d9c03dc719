// Package session houses implementations of core.CheckpointStore.
//
// InMemoryStore keeps logs in process memory, SQLiteStore persists them as
// versioned JSON documents and CachedStore puts a bounded write-through
// cache in front of either. Calling code depends only on core.CheckpointStore
// or the Store interface; the wiring layer decides which backend to build.
package session
