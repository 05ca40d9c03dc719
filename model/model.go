package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentcrew/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input built by an agent turn.
type Request struct {
	Instructions string           `json:"instructions"` // Preamble sent as the system prompt
	Messages     core.Log         `json:"messages"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
//
// Exactly one non-partial Response is emitted per successful Generate call;
// its Message is the assistant reply (text and/or tool calls).
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Message      core.Message `json:"message"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by agents to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrNoResponse is returned by Collect when a model closes its channels
// without emitting a final response.
var ErrNoResponse = errors.New("model returned no final response")

// Collect drives a Generate call to completion and returns the final
// (non-partial) response. Partial chunks are passed to onPartial when it is
// non-nil. Cancellation of ctx is reported as ctx.Err().
func Collect(ctx context.Context, m Model, req Request, onPartial func(Response)) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final    Response
		hasFinal bool
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if resp.Partial {
				if onPartial != nil {
					onPartial(resp)
				}
				continue
			}
			final, hasFinal = resp, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	if !hasFinal {
		return Response{}, ErrNoResponse
	}

	return final, nil
}

// MockReply is one scripted MockModel turn. A non-nil Err fails the turn.
type MockReply struct {
	Message core.Message
	Err     error
	Delay   time.Duration
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
//
// Scripted replies are consumed in order; once the script is exhausted the
// model answers with a canned text response keyed by the last user message.
// Every request is recorded.
type MockModel struct {
	info      Info
	responses map[string]string

	mu       sync.Mutex
	script   []MockReply
	requests []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Script appends scripted replies.
func (m *MockModel) Script(replies ...MockReply) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, replies...)
	return m
}

// ReplyText scripts a final text reply.
func (m *MockModel) ReplyText(text string) *MockModel {
	return m.Script(MockReply{Message: core.Message{Role: core.RoleAssistant, Content: text}})
}

// ReplyToolCalls scripts a reply requesting the given tool calls.
func (m *MockModel) ReplyToolCalls(calls ...core.ToolCall) *MockModel {
	return m.Script(MockReply{Message: core.Message{Role: core.RoleAssistant, ToolCalls: calls}})
}

// ReplyError scripts a failing turn.
func (m *MockModel) ReplyError(err error) *MockModel {
	return m.Script(MockReply{Err: err})
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	for i, r := range m.requests {
		out[i] = r
		out[i].Messages = r.Messages.Clone()
	}
	return out
}

// Remaining returns the number of unconsumed scripted replies.
func (m *MockModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.script)
}

func (m *MockModel) next(req Request) (MockReply, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req.Messages = req.Messages.Clone()
	m.requests = append(m.requests, req)

	if len(m.script) == 0 {
		return MockReply{}, false
	}
	r := m.script[0]
	m.script = m.script[1:]
	return r, true
}

func (m *MockModel) canned(req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var inputText string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == core.RoleUser {
			inputText = req.Messages[i].Content
			break
		}
	}
	if inputText == "" {
		return "", fmt.Errorf("no user message provided")
	}
	if full, ok := m.responses[inputText]; ok {
		return full, nil
	}
	return fmt.Sprintf("Mock response to: %s", inputText), nil
}

// Generate implements Model; emits optional streaming chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		reply, scripted := m.next(req)
		if !scripted {
			text, err := m.canned(req)
			if err != nil {
				errCh <- err
				return
			}
			reply = MockReply{Message: core.Message{Role: core.RoleAssistant, Content: text}}
		}

		if reply.Delay > 0 {
			timer := time.NewTimer(reply.Delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-timer.C:
			}
		}

		if reply.Err != nil {
			errCh <- reply.Err
			return
		}

		msg := reply.Message.Clone()
		msg.Role = core.RoleAssistant

		if req.Stream && msg.Content != "" {
			for _, word := range strings.SplitAfter(msg.Content, " ") {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Message: core.Message{Role: core.RoleAssistant, Content: word}}:
				}
			}
		}

		finish := "stop"
		if msg.HasToolCalls() {
			finish = "tool_calls"
		}

		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{ID: core.NewID(), Message: msg, FinishReason: finish}:
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
