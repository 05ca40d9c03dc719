package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Description string
	Instruction Instruction
	Tools       []tool.Tool
	// MaxTurns bounds model turns per run. Zero means unlimited.
	MaxTurns int
	// MaxParallelTools bounds concurrent tool calls within a tool turn.
	// Results are appended in request order regardless.
	MaxParallelTools int
	ToolTimeout      time.Duration
	// Stream requests streaming generation; partial chunks go to OnPartial.
	Stream    bool
	OnPartial func(agentName string, chunk model.Response)
	Callbacks []Callback
	Logger    logging.Logger
}

// ModelAgent drives a model through alternating model and tool turns until
// it produces a final answer.
//
// The tool registry is sealed on construction. A ModelAgent holds no
// per-run state and is safe for concurrent use on different logs.
type ModelAgent struct {
	BaseAgent
	llm         model.Model
	instruction Instruction
	registry    *tool.Registry
	maxTurns    int
	stream      bool
	onPartial   func(agentName string, chunk model.Response)
	callbacks   *CallbackManager
	executor    *toolExecutor
	logger      logging.Logger
}

// NewModelAgent creates a model-backed agent. It fails when two tools share
// a name or a tool name is invalid.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) (*ModelAgent, error) {
	opts := ModelAgentOptions{
		Instruction:      NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		MaxParallelTools: 1,
		ToolTimeout:      2 * time.Minute,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if name == "" {
		return nil, fmt.Errorf("agent name is required")
	}

	if llm == nil {
		return nil, fmt.Errorf("agent %s: model is required", name)
	}

	if opts.MaxTurns < 0 {
		return nil, fmt.Errorf("agent %s: max turns must not be negative", name)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}
	registry.Seal()

	callbacks := NewCallbackManager(opts.Callbacks...)

	return &ModelAgent{
		BaseAgent:   NewBaseAgent(name, opts.Description),
		llm:         llm,
		instruction: opts.Instruction,
		registry:    registry,
		maxTurns:    opts.MaxTurns,
		stream:      opts.Stream,
		onPartial:   opts.OnPartial,
		callbacks:   callbacks,
		executor: &toolExecutor{
			cfg: ToolExecutorConfig{
				MaxParallel: opts.MaxParallelTools,
				Timeout:     opts.ToolTimeout,
			},
			agentName: name,
			registry:  registry,
			callbacks: callbacks,
			logger:    opts.Logger,
		},
		logger: opts.Logger,
	}, nil
}

// Tools returns the agent's sealed tool registry.
func (a *ModelAgent) Tools() *tool.Registry { return a.registry }

// Model returns the language model backing the agent.
func (a *ModelAgent) Model() model.Model { return a.llm }

// Run executes the agent loop on a copy of log.
//
// A log ending in an assistant message with unanswered calls resumes in the
// tool turn. The returned Result is non-nil for every outcome; the error is
// nil only for OutcomeDone and wraps core.ErrAborted, core.ErrModelInvocation
// or core.ErrTurnBudgetExceeded otherwise.
func (a *ModelAgent) Run(ctx context.Context, log core.Log) (*Result, error) {
	start := time.Now()

	res := &Result{
		Agent: a.Name(),
		Log:   log.Clone(),
	}
	initial := len(res.Log)

	finish := func(outcome Outcome, err error) (*Result, error) {
		res.Outcome = outcome
		res.Produced = len(res.Log) - initial
		res.Duration = time.Since(start)

		if outcome == OutcomeDone {
			res.Final, _ = res.Log.Last()
		}

		cc := &CallbackContext{AgentName: a.Name(), Turn: res.Turns, Result: res, Err: err, Duration: res.Duration}
		if cbErr := a.callbacks.ExecuteCallbacks(ctx, CallbackAfterAgent, cc); cbErr != nil {
			a.logger.Warn("agent.callback.error", "agent", a.Name(), "error", cbErr)
		}

		a.logRun(res, err)

		return res, err
	}

	if err := res.Log.Validate(); err != nil {
		return finish(OutcomeFailed, err)
	}

	a.logger.Info("agent.run.start", "agent", a.Name(), "messages", initial, "tools", a.registry.Len())

	if err := a.callbacks.ExecuteCallbacks(ctx, CallbackBeforeAgent, &CallbackContext{AgentName: a.Name()}); err != nil {
		return finish(OutcomeFailed, err)
	}

	budget := core.NewTurnBudget(a.maxTurns)

	state := StateModelTurn
	if len(res.Log.PendingToolCalls()) > 0 {
		state = StateToolTurn
	}

	for {
		switch state {
		case StateModelTurn:
			if err := ctx.Err(); err != nil {
				return finish(OutcomeAborted, abortError(err))
			}

			if err := budget.Increment(); err != nil {
				return finish(OutcomeBudgetExhausted, err)
			}

			reply, err := a.modelTurn(ctx, res)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return finish(OutcomeAborted, abortError(ctxErr))
				}
				return finish(OutcomeFailed, err)
			}

			res.Log.Append(reply)
			res.Turns++

			if reply.HasToolCalls() {
				state = StateToolTurn
			} else {
				state = StateDone
			}

		case StateToolTurn:
			pending := res.Log.PendingToolCalls()
			outcomes, err := a.executor.execute(ctx, res.Turns, res.Log.Clone(), pending)

			// Answers of calls that finished are kept even on abort; their
			// side effects happened. Transcripts follow a complete tool block
			// only.
			for _, o := range outcomes {
				res.Log.Append(o.message)
			}
			if len(outcomes) == len(pending) {
				for _, o := range outcomes {
					res.Log.Append(o.transcript...)
				}
			}

			if err != nil {
				return finish(OutcomeAborted, abortError(err))
			}

			state = StateModelTurn

		case StateDone:
			return finish(OutcomeDone, nil)
		}
	}
}

// modelTurn sends one request and returns the assistant message to append.
// Nothing is appended here so that a failing turn leaves the log untouched.
func (a *ModelAgent) modelTurn(ctx context.Context, res *Result) (core.Message, error) {
	instructions, err := a.instruction.Resolve(ctx, res.Log)
	if err != nil {
		return core.Message{}, fmt.Errorf("%w: resolve instruction: %w", core.ErrModelInvocation, err)
	}

	req := model.Request{
		Instructions: instructions,
		Messages:     res.Log,
		Tools:        a.registry.Describe(),
		Stream:       a.stream,
	}

	turn := res.Turns + 1
	cc := &CallbackContext{AgentName: a.Name(), Turn: turn, Request: &req}
	if err := a.callbacks.ExecuteCallbacks(ctx, CallbackBeforeModel, cc); err != nil {
		return core.Message{}, fmt.Errorf("%w: %w", core.ErrModelInvocation, err)
	}

	var onPartial func(model.Response)
	if a.onPartial != nil {
		onPartial = func(chunk model.Response) { a.onPartial(a.Name(), chunk) }
	}

	start := time.Now()
	resp, err := model.Collect(ctx, a.llm, req, onPartial)
	cc.Duration = time.Since(start)

	if err != nil {
		if ctx.Err() == nil {
			cc.Err = err
			if cbErr := a.callbacks.ExecuteCallbacks(ctx, CallbackOnError, cc); cbErr != nil {
				a.logger.Warn("agent.callback.error", "agent", a.Name(), "error", cbErr)
			}
			a.logger.Error("agent.model.error", "agent", a.Name(), "turn", turn, "error", err)
		}
		return core.Message{}, fmt.Errorf("%w: %w", core.ErrModelInvocation, err)
	}

	cc.Response = &resp
	if err := a.callbacks.ExecuteCallbacks(ctx, CallbackAfterModel, cc); err != nil {
		return core.Message{}, fmt.Errorf("%w: %w", core.ErrModelInvocation, err)
	}

	if resp.Usage != nil {
		res.Usage.PromptTokens += resp.Usage.PromptTokens
		res.Usage.CompletionTokens += resp.Usage.CompletionTokens
		res.Usage.TotalTokens += resp.Usage.TotalTokens
	}

	a.logger.Debug(
		"agent.model.response",
		"agent", a.Name(),
		"turn", turn,
		"tool_calls", len(resp.Message.ToolCalls),
		"finish_reason", resp.FinishReason,
		"duration_ms", cc.Duration.Milliseconds(),
	)

	return a.normalizeReply(resp.Message), nil
}

// normalizeReply stamps identity onto the model's reply and gives every tool
// call a unique id, since answers are matched to calls by id. Some
// OpenAI-compatible servers omit ids or repeat them within one reply.
func (a *ModelAgent) normalizeReply(msg core.Message) core.Message {
	reply := core.NewAssistantMessage(a.Name(), msg.Content, msg.ToolCalls...)

	seen := make(map[string]struct{}, len(reply.ToolCalls))
	for i := range reply.ToolCalls {
		id := reply.ToolCalls[i].ID
		if _, dup := seen[id]; id == "" || dup {
			id = "call_" + core.NewID()
			reply.ToolCalls[i].ID = id
		}
		seen[id] = struct{}{}
	}

	return reply
}

func (a *ModelAgent) logRun(res *Result, err error) {
	args := []any{
		"agent", a.Name(),
		"outcome", string(res.Outcome),
		"turns", res.Turns,
		"produced", res.Produced,
		"total_tokens", res.Usage.TotalTokens,
		"duration_ms", res.Duration.Milliseconds(),
	}

	switch res.Outcome {
	case OutcomeDone:
		a.logger.Info("agent.run.complete", args...)
	case OutcomeAborted:
		a.logger.Warn("agent.run.aborted", args...)
	default:
		a.logger.Error("agent.run.failed", append(args, "error", err)...)
	}
}

func abortError(cause error) error {
	return fmt.Errorf("%w: %w", core.ErrAborted, cause)
}
