package code

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hupe1980/agentcrew/logging"
)

const truncatedNote = "\n... output truncated ..."

// waitDelay bounds how long output is drained after the process is killed,
// since children it spawned may keep the pipes open.
const waitDelay = 2 * time.Second

// PythonExecutorOptions configures a PythonExecutor.
type PythonExecutorOptions struct {
	// Interpreter is the binary invoked with "-" to read the program from
	// stdin. Defaults to python3.
	Interpreter string
	// WorkDir is the working directory of the process, typically the output
	// directory so generated files land there.
	WorkDir string
	// Timeout bounds a single execution. Zero disables the limit.
	Timeout time.Duration
	// MaxOutputBytes caps captured stdout and stderr each.
	MaxOutputBytes int
	// Env is appended to the inherited environment.
	Env []string

	Logger logging.Logger
}

// PythonExecutor runs programs in a local interpreter subprocess.
//
// Execution is not sandboxed. Only use it with models and data you trust.
type PythonExecutor struct {
	opts PythonExecutorOptions
}

// NewPythonExecutor creates a PythonExecutor.
func NewPythonExecutor(optFns ...func(o *PythonExecutorOptions)) *PythonExecutor {
	opts := PythonExecutorOptions{
		Interpreter:    "python3",
		Timeout:        time.Minute,
		MaxOutputBytes: 64 << 10,
		Logger:         logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &PythonExecutor{opts: opts}
}

// Execute implements Executor.
func (e *PythonExecutor) Execute(ctx context.Context, code string) (*Result, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("code is empty")
	}

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, e.opts.Interpreter, "-")
	cmd.Dir = e.opts.WorkDir
	cmd.Stdin = strings.NewReader(code)
	cmd.WaitDelay = waitDelay
	if len(e.opts.Env) > 0 {
		cmd.Env = append(cmd.Environ(), e.opts.Env...)
	}

	stdout := &cappedBuffer{limit: e.opts.MaxOutputBytes}
	stderr := &cappedBuffer{limit: e.opts.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	dur := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		e.opts.Logger.Warn("code.python.timeout", "timeout", e.opts.Timeout)
		return nil, fmt.Errorf("%w after %s", ErrTimeout, e.opts.Timeout)
	}

	res := &Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Duration:  dur,
		Truncated: stdout.truncated || stderr.truncated,
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("run %s: %w", e.opts.Interpreter, err)
		}
		res.ExitCode = exitErr.ExitCode()
	}

	e.opts.Logger.Debug(
		"code.python.executed",
		"exit_code", res.ExitCode,
		"duration_ms", dur.Milliseconds(),
		"truncated", res.Truncated,
	)

	return res, nil
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
// A limit <= 0 keeps everything.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit <= 0 {
		return b.buf.Write(p)
	}

	if room := b.limit - b.buf.Len(); room < len(p) {
		b.truncated = true
		if room > 0 {
			b.buf.Write(p[:room])
		}
		return len(p), nil
	}

	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncatedNote
	}
	return b.buf.String()
}
