package core

import "errors"

// Error taxonomy of the agent loop. Tool-level failures (unknown tool,
// invalid arguments, execution failure) are recovered into tool messages;
// the remaining errors are returned to the caller.
var (
	ErrUnknownTool        = errors.New("unknown tool")
	ErrInvalidArguments   = errors.New("invalid arguments")
	ErrToolExecution      = errors.New("tool execution failed")
	ErrModelInvocation    = errors.New("model invocation failed")
	ErrAborted            = errors.New("aborted")
	ErrDuplicateTool      = errors.New("duplicate tool")
	ErrRegistrySealed     = errors.New("tool registry is sealed")
	ErrTurnBudgetExceeded = errors.New("turn budget exceeded")
	ErrInvalidLog         = errors.New("invalid message log")
)
