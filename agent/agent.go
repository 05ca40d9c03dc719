package agent

import (
	"context"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
	"github.com/hupe1980/agentcrew/tool"
)

// Agent advances a conversation log by one user turn.
//
// Run takes ownership of a copy of log, drives it through model and tool turns
// and returns the extended log in the Result. The caller's slice is never
// modified.
type Agent interface {
	Name() string
	Description() string
	Tools() *tool.Registry
	Run(ctx context.Context, log core.Log) (*Result, error)
}

// State is a position in the agent loop.
type State string

const (
	StateModelTurn State = "MODEL_TURN"
	StateToolTurn  State = "TOOL_TURN"
	StateDone      State = "DONE"
	StateAborted   State = "ABORTED"
)

// Outcome describes how a run terminated.
type Outcome string

const (
	// OutcomeDone means the model produced a final answer.
	OutcomeDone Outcome = "done"
	// OutcomeAborted means the run was cancelled. An interrupted model turn commits
	// nothing; an interrupted tool turn keeps the results of calls that finished.
	OutcomeAborted Outcome = "aborted"
	// OutcomeFailed means a model invocation failed. The log is unchanged
	// since the failing request.
	OutcomeFailed Outcome = "failed"
	// OutcomeBudgetExhausted means the turn budget ran out before a final answer.
	OutcomeBudgetExhausted Outcome = "budget_exhausted"
)

// Result is returned by Agent.Run for every outcome.
type Result struct {
	Agent   string
	Log     core.Log
	Outcome Outcome
	// Turns counts completed model turns.
	Turns int
	// Produced is the number of messages appended to the input log.
	Produced int
	// Final is the last message appended when Outcome is OutcomeDone.
	Final    core.Message
	Usage    model.TokenUsage
	Duration time.Duration
}

// ProducedMessages returns the messages appended by the run.
func (r *Result) ProducedMessages() core.Log {
	return r.Log.Since(len(r.Log) - r.Produced)
}
