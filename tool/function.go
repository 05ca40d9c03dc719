package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/util"
)

// FunctionHandler implements a FunctionTool. args have been validated
// against the tool's schema.
type FunctionHandler func(toolCtx *core.ToolContext, args map[string]any) (any, error)

// FunctionTool exposes a plain Go function as a tool.
//
// Call validates arguments before running the handler and reports every
// failure as a *ToolError: VALIDATION_ERROR for schema mismatches,
// EXECUTION_ERROR for plain handler errors. A *ToolError returned by the
// handler keeps its code. A FunctionTool is immutable and safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          FunctionHandler
}

// NewFunctionTool constructs a FunctionTool from an explicit schema.
//
// Example:
//
//	lookup := NewFunctionTool(
//	  "lookup_customer",
//	  "Look up a customer by id",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "customer_id": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"customer_id"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return customers.Get(tc.Context(), args["customer_id"].(string))
//	  },
//	)
func NewFunctionTool(name, description string, parameters map[string]any, fn FunctionHandler) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// Name returns the tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description shown to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema of the arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args and runs the handler.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	fail := func(err *ToolError) (any, error) {
		logger.Warn("tool.call.failed",
			"code", err.Code,
			"error", err.Message,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return fail(&ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		})
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if !errors.As(err, &toolErr) {
			toolErr = &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution}
		}
		return fail(toolErr)
	}

	logger.Debug("tool.call.ok", "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
