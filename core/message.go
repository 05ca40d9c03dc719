package core

import (
	"encoding/json"
	"time"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ToolCall is a model-issued request to invoke a named tool.
// Arguments holds the raw JSON object produced by the model; it is decoded
// and validated against the tool's schema only at invocation time.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is a single conversation entry.
//
// ToolCalls is only populated on assistant messages that request tools.
// ToolCallID is only populated on tool messages and correlates the result
// with the ToolCall it answers. Author records the agent that produced the
// message ("user" for user input); it is how transcripts folded into a
// supervisor log keep their origin.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Author     string     `json:"author,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func newMessage(role Role, author, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		Author:    author,
		CreatedAt: time.Now().UTC(),
	}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(content string) Message {
	return newMessage(RoleUser, "user", content)
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return newMessage(RoleSystem, "system", content)
}

// NewAssistantMessage creates an assistant message authored by agent. A
// message with no calls is a final reply.
func NewAssistantMessage(agent, content string, calls ...ToolCall) Message {
	m := newMessage(RoleAssistant, agent, content)
	if len(calls) > 0 {
		m.ToolCalls = append([]ToolCall(nil), calls...)
	}
	return m
}

// NewToolMessage creates the tool message answering call.
func NewToolMessage(agent string, call ToolCall, content string) Message {
	m := newMessage(RoleTool, agent, content)
	m.ToolCallID = call.ID
	m.Name = call.Name
	return m
}

// NewToolErrorMessage creates a tool message whose content describes a
// failed invocation of call.
func NewToolErrorMessage(agent string, call ToolCall, err error) Message {
	m := NewToolMessage(agent, call, "error: "+err.Error())
	m.IsError = true
	return m
}

// HasToolCalls reports whether the message requests at least one tool.
func (m Message) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// IsFinal reports whether m is an assistant reply without tool calls.
func (m Message) IsFinal() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) == 0
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	c := m
	if m.ToolCalls != nil {
		c.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			c.ToolCalls[i] = tc
			if tc.Arguments != nil {
				c.ToolCalls[i].Arguments = append(json.RawMessage(nil), tc.Arguments...)
			}
		}
	}
	return c
}
