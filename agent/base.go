package agent

import "fmt"

// BaseAgent bundles the identity shared by agent implementations.
type BaseAgent struct {
	name        string
	description string
}

// NewBaseAgent constructs a BaseAgent with a generated description.
func NewBaseAgent(name, description string) BaseAgent {
	if description == "" {
		description = fmt.Sprintf("Agent %s", name)
	}

	return BaseAgent{
		name:        name,
		description: description,
	}
}

// Name returns the agent name. It doubles as the author of every message the
// agent appends and, under a supervisor, as its tool name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a short description of the agent's purpose.
func (b *BaseAgent) Description() string { return b.description }
