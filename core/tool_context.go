package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentcrew/logging"
)

type runInfoKey struct{}

// RunInfo identifies the session and run an agent is executing for.
type RunInfo struct {
	SessionID string
	RunID     string
}

// WithRunInfo returns a context carrying info.
func WithRunInfo(ctx context.Context, info RunInfo) context.Context {
	return context.WithValue(ctx, runInfoKey{}, info)
}

// RunInfoFrom returns the RunInfo stored in ctx, if any.
func RunInfoFrom(ctx context.Context) (RunInfo, bool) {
	info, ok := ctx.Value(runInfoKey{}).(RunInfo)
	return info, ok
}

// ToolActions collects effects a tool requests on the caller's log. They are
// applied by the agent loop once the whole tool turn has completed.
type ToolActions struct {
	// Author overrides the author of the tool message answering the call.
	Author string
	// Transcript is appended to the caller's log after the tool results of
	// the turn, in call order.
	Transcript Log
}

// ToolContext provides the constrained execution surface handed to tool
// implementations: the cancellable context of the run, the call being
// answered, the agent that issued it and a read-only view of its log.
type ToolContext struct {
	ctx          context.Context
	call         ToolCall
	agentName    string
	info         RunInfo
	conversation Log
	actions      ToolActions
	logger       logging.Logger
}

// NewToolContext constructs a tool context for a single tool call. Records
// written through Logger carry the agent, tool and call id.
func NewToolContext(ctx context.Context, agentName string, call ToolCall, logger logging.Logger) *ToolContext {
	info, _ := RunInfoFrom(ctx)

	return &ToolContext{
		ctx:       ctx,
		call:      call,
		agentName: agentName,
		info:      info,
		logger:    logging.With(logger, "agent", agentName, "tool", call.Name, "tool_call_id", call.ID),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session ID associated with the tool invocation.
func (tc *ToolContext) SessionID() string { return tc.info.SessionID }

// RunID returns the run ID associated with the tool invocation.
func (tc *ToolContext) RunID() string { return tc.info.RunID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.logger }

// ToolCallID returns the id of the call being answered.
func (tc *ToolContext) ToolCallID() string { return tc.call.ID }

// ToolName returns the name of the invoked tool.
func (tc *ToolContext) ToolName() string { return tc.call.Name }

// AgentName returns the agent name associated with the tool invocation.
func (tc *ToolContext) AgentName() string { return tc.agentName }

// WithConversation attaches the caller's log as of the current tool turn.
func (tc *ToolContext) WithConversation(l Log) *ToolContext {
	tc.conversation = l
	return tc
}

// Conversation returns the caller's log as of the current tool turn. The
// returned log is shared by every call of the turn and must not be modified.
func (tc *ToolContext) Conversation() Log { return tc.conversation }

// Actions returns the actions accumulated by the tool.
func (tc *ToolContext) Actions() *ToolActions { return &tc.actions }

// AttachTranscript records messages to fold into the caller's log.
func (tc *ToolContext) AttachTranscript(msgs ...Message) {
	tc.actions.Transcript = append(tc.actions.Transcript, msgs...)
	tc.logger.Debug("tool.transcript.attached", "messages", len(msgs))
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.ctx == nil || tc.call.ID == "" || tc.call.Name == "" {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}
