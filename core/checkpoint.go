package core

import "context"

// CheckpointStore persists a session's Log between invocations.
//
// Load returns an empty Log (and no error) when nothing has been saved for
// the session yet. Save replaces the stored Log as a whole. Callers serialize
// access per session; implementations only guarantee that a single Save is
// atomic.
type CheckpointStore interface {
	Load(ctx context.Context, sessionID string) (Log, error)
	Save(ctx context.Context, sessionID string, log Log) error
}
