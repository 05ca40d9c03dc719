package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
)

// CallbackType defines the lifecycle points of the agent loop where callbacks
// run.
//
// Errors returned by before_agent, before_model, after_model and before_tool
// callbacks terminate the associated operation: a failed run for the first
// three, a rejected call answered with a tool error for before_tool. Errors
// from after_tool, after_agent and on_error callbacks are logged only.
type CallbackType string

const (
	// CallbackBeforeAgent runs before the first turn of a run.
	CallbackBeforeAgent CallbackType = "before_agent"

	// CallbackAfterAgent runs once the run reached its outcome.
	// CallbackContext.Result is set.
	CallbackAfterAgent CallbackType = "after_agent"

	// CallbackBeforeModel runs before each model request. Callbacks may
	// modify CallbackContext.Request.
	CallbackBeforeModel CallbackType = "before_model"

	// CallbackAfterModel runs after each successful model response, before
	// the reply is appended.
	CallbackAfterModel CallbackType = "after_model"

	// CallbackBeforeTool runs before each tool call.
	CallbackBeforeTool CallbackType = "before_tool"

	// CallbackAfterTool runs after each tool call with the message answering it.
	CallbackAfterTool CallbackType = "after_tool"

	// CallbackOnError runs when a model request or a tool call fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the state visible to a callback. Only the fields
// relevant to the callback type are set.
type CallbackContext struct {
	AgentName    string
	CallbackType CallbackType
	// Turn is the 1-based model turn the callback belongs to.
	Turn int

	Request    *model.Request
	Response   *model.Response
	ToolCall   *core.ToolCall
	ToolResult *core.Message
	Result     *Result

	Err      error
	Duration time.Duration

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for agent loop lifecycle hooks.
//
// Tool callbacks may run concurrently when an agent executes tools in
// parallel; implementations must be safe for concurrent use.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	cb := NewFunctionCallback(CallbackBeforeTool, func(ctx context.Context, cc *CallbackContext) error {
//	    if cc.ToolCall.Name == "run_python" {
//	        return errors.New("code execution disabled")
//	    }
//	    return nil
//	})
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager routes callbacks by type.
//
// Registration is not synchronized; register every callback before the
// owning agent starts running. Execution is safe for concurrent use.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates a callback manager holding callbacks.
func NewCallbackManager(callbacks ...Callback) *CallbackManager {
	cm := &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}

	for _, cb := range callbacks {
		cm.RegisterCallback(cb)
	}

	return cm
}

// RegisterCallback adds a callback. Callbacks of one type run in
// registration order.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	if callback == nil {
		return
	}

	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// Has reports whether any callback is registered for callbackType.
func (cm *CallbackManager) Has(callbackType CallbackType) bool {
	return cm != nil && len(cm.callbacks[callbackType]) > 0
}

// ExecuteCallbacks executes the callbacks registered for callbackType. The
// first error stops execution and is returned.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	callbackCtx.CallbackType = callbackType

	for _, callback := range cm.callbacks[callbackType] {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback writes a structured log line for every lifecycle event of
// its type.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType { return c.callbackType }

// Execute logs the event.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{"agent", cc.AgentName, "turn", cc.Turn}

	if cc.ToolCall != nil {
		args = append(args, "tool", cc.ToolCall.Name, "tool_call_id", cc.ToolCall.ID)
	}

	if cc.Result != nil {
		args = append(args, "outcome", string(cc.Result.Outcome), "produced", cc.Result.Produced)
	}

	if cc.Duration > 0 {
		args = append(args, "duration", cc.Duration)
	}

	if cc.Err != nil {
		args = append(args, "error", cc.Err)
		c.logger.Warn("agent.callback."+string(cc.CallbackType), args...)

		return nil
	}

	c.logger.Debug("agent.callback."+string(cc.CallbackType), args...)

	return nil
}
