// Package runner implements the orchestration layer between callers and an
// agent.
//
// A Runner owns the session lifecycle of a run: it loads the session's
// checkpoint, closes tool calls left dangling by an interrupted run, appends
// the user message, runs the agent and saves the resulting log whatever the
// outcome. Runs of the same session are serialized; runs of different
// sessions proceed concurrently up to MaxConcurrentRuns.
package runner
