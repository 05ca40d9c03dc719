// Package agent implements the agent loop and the supervisor.
//
// A ModelAgent alternates between model turns and tool turns:
//
//	MODEL_TURN --tool calls--> TOOL_TURN --results appended--> MODEL_TURN
//	MODEL_TURN --final text--> DONE
//	any state  --cancelled---> ABORTED
//
// Each tool turn answers every call of the preceding assistant message with
// exactly one tool message, in request order, so the log handed back to the
// caller always satisfies core.Log.Validate.
//
// A Supervisor is a ModelAgent whose tools are other agents. Calling such a
// tool runs the sub-agent on a derived log and merges its output back into
// the supervisor's log according to the configured MergeMode.
package agent
