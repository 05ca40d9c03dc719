package testutil

import (
	"encoding/json"

	"github.com/hupe1980/agentcrew/core"
)

// Call builds a tool call with compact JSON arguments.
func Call(id, name, args string) core.ToolCall {
	if args == "" {
		args = "{}"
	}
	return core.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

// LogBuilder provides a fluent helper for constructing logs in tests.
// Example:
//
//	log := NewLogBuilder().
//		User("what is 2+2?").
//		Calls("agent", Call("c1", "add", `{"a":2,"b":2}`)).
//		Result("agent", Call("c1", "add", ""), "4").
//		Assistant("agent", "4").
//		Build()
type LogBuilder struct {
	log core.Log
}

// NewLogBuilder creates an empty builder.
func NewLogBuilder() *LogBuilder { return &LogBuilder{} }

// System appends a system message (chainable).
func (b *LogBuilder) System(text string) *LogBuilder {
	b.log.Append(core.NewSystemMessage(text))
	return b
}

// User appends a user message (chainable).
func (b *LogBuilder) User(text string) *LogBuilder {
	b.log.Append(core.NewUserMessage(text))
	return b
}

// Assistant appends a final assistant reply (chainable).
func (b *LogBuilder) Assistant(author, text string) *LogBuilder {
	b.log.Append(core.NewAssistantMessage(author, text))
	return b
}

// Calls appends an assistant message requesting calls (chainable).
func (b *LogBuilder) Calls(author string, calls ...core.ToolCall) *LogBuilder {
	b.log.Append(core.NewAssistantMessage(author, "", calls...))
	return b
}

// Result appends the tool message answering call (chainable).
func (b *LogBuilder) Result(author string, call core.ToolCall, content string) *LogBuilder {
	b.log.Append(core.NewToolMessage(author, call, content))
	return b
}

// Message appends an arbitrary message (chainable).
func (b *LogBuilder) Message(m core.Message) *LogBuilder {
	b.log.Append(m)
	return b
}

// Build returns a copy of the assembled log.
func (b *LogBuilder) Build() core.Log { return b.log.Clone() }
