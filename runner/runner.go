package runner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/agentcrew/agent"
	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/session"
)

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Store persists session logs. Defaults to a session.InMemoryStore.
	Store core.CheckpointStore
	// MaxConcurrentRuns limits concurrent runs across sessions. Zero means
	// unlimited.
	MaxConcurrentRuns int
	Logger            logging.Logger
}

// Result is the outcome of a single run.
type Result struct {
	RunID     string
	SessionID string
	*agent.Result
}

type activeRun struct {
	sessionID string
	cancel    context.CancelFunc
	startedAt time.Time
}

// RunInfo describes an in-flight run.
type RunInfo struct {
	RunID     string    `json:"run_id"`
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}

// Runner coordinates agent runs over persisted sessions. Public methods are
// safe for concurrent use.
type Runner struct {
	agent  agent.Agent
	store  core.CheckpointStore
	logger logging.Logger

	sem   *semaphore.Weighted
	locks *keyedMutex

	activeRuns map[string]activeRun
	mu         sync.RWMutex
}

// New constructs a Runner with optional overrides.
func New(a agent.Agent, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	r := &Runner{
		agent:      a,
		store:      opts.Store,
		logger:     opts.Logger,
		locks:      newKeyedMutex(),
		activeRuns: make(map[string]activeRun),
	}

	if opts.MaxConcurrentRuns > 0 {
		r.sem = semaphore.NewWeighted(int64(opts.MaxConcurrentRuns))
	}

	return r
}

// Agent returns the agent driven by the runner.
func (r *Runner) Agent() agent.Agent { return r.agent }

// Run appends input as a user message to the session and runs the agent
// until it reaches an outcome. The session log is saved for every outcome,
// including cancellation, so the conversation so far is never lost.
//
// The returned Result is non-nil whenever the agent ran; its error follows
// agent.Agent.Run.
func (r *Runner) Run(ctx context.Context, sessionID, input string) (*Result, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}

	runID := core.NewID()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.activeRuns[runID] = activeRun{sessionID: sessionID, cancel: cancel, startedAt: time.Now()}
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.activeRuns, runID)
		r.mu.Unlock()
	}()

	if r.sem != nil {
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("%w: waiting for a run slot: %w", core.ErrAborted, err)
		}
		defer r.sem.Release(1)
	}

	unlock, err := r.locks.lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for session %s: %w", core.ErrAborted, sessionID, err)
	}
	defer unlock()

	logger := logging.With(r.logger, "session_id", sessionID, "run_id", runID)

	log, err := r.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	if n := log.CloseDanglingCalls(r.agent.Name(), "previous run was interrupted before this call finished; it may have partially run"); n > 0 {
		logger.Warn("runner.session.dangling_calls_closed", "calls", n)
	}

	log.Append(core.NewUserMessage(input))

	logger.Info("runner.run.start", "agent", r.agent.Name(), "messages", len(log))

	runCtx := core.WithRunInfo(ctx, core.RunInfo{SessionID: sessionID, RunID: runID})
	res, runErr := r.agent.Run(runCtx, log)

	final := log
	if res != nil {
		final = res.Log
	}

	// The run context may already be cancelled; the checkpoint must still be written.
	saveCtx, saveCancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer saveCancel()

	if err := r.store.Save(saveCtx, sessionID, final); err != nil {
		logger.Error("runner.session.save_failed", "error", err)
		runErr = errors.Join(runErr, fmt.Errorf("save session %s: %w", sessionID, err))
	}

	if res == nil {
		return nil, runErr
	}

	logger.Info(
		"runner.run.complete",
		"outcome", string(res.Outcome),
		"produced", res.Produced,
		"duration_ms", res.Duration.Milliseconds(),
	)

	return &Result{RunID: runID, SessionID: sessionID, Result: res}, runErr
}

// History returns the stored log of a session.
func (r *Runner) History(ctx context.Context, sessionID string) (core.Log, error) {
	return r.store.Load(ctx, sessionID)
}

// Cancel cancels a running run by ID.
func (r *Runner) Cancel(runID string) error {
	r.mu.RLock()
	run, exists := r.activeRuns[runID]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	run.cancel()

	return nil
}

// CancelSession cancels every in-flight or queued run of a session and
// returns how many were cancelled.
func (r *Runner) CancelSession(sessionID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, run := range r.activeRuns {
		if run.sessionID == sessionID {
			run.cancel()
			n++
		}
	}

	return n
}

// ActiveRuns lists in-flight and queued runs, oldest first.
func (r *Runner) ActiveRuns() []RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RunInfo, 0, len(r.activeRuns))
	for id, run := range r.activeRuns {
		out = append(out, RunInfo{RunID: id, SessionID: run.sessionID, StartedAt: run.startedAt})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })

	return out
}
