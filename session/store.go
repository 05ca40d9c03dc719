package session

import (
	"context"
	"time"

	"github.com/hupe1980/agentcrew/core"
)

// Info summarizes a stored session.
type Info struct {
	SessionID string    `json:"session_id"`
	Messages  int       `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a core.CheckpointStore that can also enumerate and delete
// sessions.
type Store interface {
	core.CheckpointStore

	// Delete removes a session. Deleting an unknown session is not an error.
	Delete(ctx context.Context, sessionID string) error
	// List returns stored sessions, most recently updated first.
	List(ctx context.Context) ([]Info, error)
	Close() error
}
