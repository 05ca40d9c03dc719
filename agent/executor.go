package agent

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/tool"
)

// ToolExecutorConfig configures how a tool turn executes its calls.
type ToolExecutorConfig struct {
	// MaxParallel bounds concurrent calls. Values below 2 run calls
	// sequentially in request order.
	MaxParallel int
	// Timeout bounds each call. Zero disables the limit.
	Timeout time.Duration
}

// toolOutcome is the result of one call: the message answering it and the
// transcript the tool attached.
type toolOutcome struct {
	message    core.Message
	transcript core.Log
}

// toolExecutor runs the calls of one tool turn. It never fails a call
// outright: unknown tools, invalid arguments, execution errors, panics and
// timeouts all become error tool messages. The only error it returns is the
// cancellation of ctx. The outcomes returned with it are the longest
// request-order prefix of calls that finished before ctx was cancelled.
type toolExecutor struct {
	cfg       ToolExecutorConfig
	agentName string
	registry  *tool.Registry
	callbacks *CallbackManager
	logger    logging.Logger
}

func (e *toolExecutor) execute(ctx context.Context, turn int, conversation core.Log, calls []core.ToolCall) ([]toolOutcome, error) {
	n := len(calls)
	outcomes := make([]toolOutcome, n)
	batchStart := time.Now()

	maxPar := e.cfg.MaxParallel
	if maxPar < 1 {
		maxPar = 1
	}
	if maxPar > n {
		maxPar = n
	}

	// finished[i] is set only when call i completed before cancellation, so
	// a result shaped by the cancel itself is never reported.
	finished := make([]bool, n)

	if maxPar <= 1 {
		for i, call := range calls {
			if err := ctx.Err(); err != nil {
				return finishedPrefix(outcomes, finished), err
			}
			outcomes[i] = e.executeOne(ctx, turn, conversation, call)
			finished[i] = ctx.Err() == nil
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxPar)

		for i, call := range calls {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				outcomes[i] = e.executeOne(gctx, turn, conversation, call)
				finished[i] = ctx.Err() == nil
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return finishedPrefix(outcomes, finished), err
		}
	}

	if err := ctx.Err(); err != nil {
		return finishedPrefix(outcomes, finished), err
	}

	e.logger.Debug(
		"agent.tools.batch.complete",
		"agent", e.agentName,
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return outcomes, nil
}

// finishedPrefix returns the outcomes of the leading finished calls. Answers
// must follow request order, so a finished call behind an unfinished one is
// dropped.
func finishedPrefix(outcomes []toolOutcome, finished []bool) []toolOutcome {
	for i, ok := range finished {
		if !ok {
			return outcomes[:i]
		}
	}
	return outcomes
}

func (e *toolExecutor) executeOne(ctx context.Context, turn int, conversation core.Log, call core.ToolCall) toolOutcome {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.cfg.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
	}
	defer cancel()

	toolCtx := core.NewToolContext(callCtx, e.agentName, call, e.logger).WithConversation(conversation)
	cc := &CallbackContext{AgentName: e.agentName, Turn: turn, ToolCall: &call}

	e.logger.Debug("agent.tool.start", "agent", e.agentName, "tool", call.Name, "tool_call_id", call.ID)

	start := time.Now()

	var (
		content string
		err     error
	)

	if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTool, cc); cbErr != nil {
		err = tool.NewToolError(call.Name, cbErr.Error(), tool.CodeRejected)
	} else {
		content, err = e.invoke(toolCtx, call)
	}

	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = tool.NewToolError(call.Name, fmt.Sprintf("timed out after %s", e.cfg.Timeout), tool.CodeTimeout)
	}

	dur := time.Since(start)

	author := e.agentName
	if a := toolCtx.Actions().Author; a != "" {
		author = a
	}

	var out toolOutcome
	if err != nil {
		var toolErr *tool.ToolError
		if !errors.As(err, &toolErr) {
			err = tool.NewToolError(call.Name, err.Error(), tool.CodeExecution)
		}

		out.message = core.NewToolErrorMessage(author, call, err)

		cc.Err = err
		if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, cc); cbErr != nil {
			e.logger.Warn("agent.callback.error", "agent", e.agentName, "error", cbErr)
		}
	} else {
		out.message = core.NewToolMessage(author, call, content)
		out.transcript = toolCtx.Actions().Transcript
	}

	cc.ToolResult = &out.message
	cc.Duration = dur

	if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterTool, cc); cbErr != nil {
		e.logger.Warn("agent.callback.error", "agent", e.agentName, "error", cbErr)
	}

	e.logger.Info(
		"agent.tool.executed",
		"agent", e.agentName,
		"tool", call.Name,
		"tool_call_id", call.ID,
		"duration_ms", dur.Milliseconds(),
		"error", err != nil,
	)

	return out
}

func (e *toolExecutor) invoke(toolCtx *core.ToolContext, call core.ToolCall) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(call.Name, r)
			e.logger.Error("agent.tool.panic", "agent", e.agentName, "tool", call.Name, "recover", r)
		}
	}()

	return e.registry.Invoke(toolCtx, call)
}

// panicError converts a recovered panic value into a tool error. The stack
// is kept in Details and never reaches the model.
func panicError(toolName string, r any) error {
	return &tool.ToolError{
		Tool:    toolName,
		Message: fmt.Sprintf("panic: %v", r),
		Code:    tool.CodePanic,
		Details: string(debug.Stack()),
	}
}
