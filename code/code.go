// Package code executes model-written programs for the coder and slides
// agents and exposes execution as the run_python tool.
package code

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a program exceeds its execution timeout.
var ErrTimeout = errors.New("code execution timed out")

// Result is the outcome of running a program to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	// Truncated reports whether output was cut at the configured cap.
	Truncated bool
}

// Success reports whether the program exited with status zero.
func (r *Result) Success() bool { return r.ExitCode == 0 }

// Executor runs source code.
//
// A program that runs and exits non-zero is not an error: the Result carries
// the exit code. Errors mean the program could not be run or was stopped.
type Executor interface {
	Execute(ctx context.Context, code string) (*Result, error)
}
