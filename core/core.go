package core

import "github.com/google/uuid"

// NewID returns a new random identifier for messages, tool calls and runs.
func NewID() string {
	return uuid.NewString()
}
