// Package tool implements the tool calling subsystem that lets agents invoke
// structured capabilities (queries, code execution, sub-agents) with schema
// validated arguments, consistent error handling and a per-agent Registry
// that is fixed once the agent is constructed.
package tool

import (
	"fmt"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully (returned errors become tool messages)
//   - Be thread-safe if the owning agent serves several sessions
type Tool interface {
	// Name returns the unique identifier for this tool.
	// Names should be descriptive and follow function naming conventions (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	// This schema is used for parameter validation and LLM function calling.
	Parameters() map[string]interface{}

	// Call executes the tool with arguments already validated against Parameters.
	Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeUnknownTool = "UNKNOWN_TOOL"
	CodeValidation  = "VALIDATION_ERROR"
	CodeExecution   = "EXECUTION_ERROR"
	CodePanic       = "PANIC"
	CodeTimeout     = "TIMEOUT"
	CodeRejected    = "REJECTED"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string      `json:"tool"`              // Name of the tool that failed
	Message string      `json:"message"`           // Error message
	Code    string      `json:"code"`              // Error code for categorization
	Details interface{} `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap maps the error code onto the core error taxonomy so callers can use
// errors.Is(err, core.ErrUnknownTool) and friends.
func (e *ToolError) Unwrap() error {
	switch e.Code {
	case CodeUnknownTool:
		return core.ErrUnknownTool
	case CodeValidation:
		return core.ErrInvalidArguments
	default:
		return core.ErrToolExecution
	}
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
