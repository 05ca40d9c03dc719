package code

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/testutil"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/hupe1980/agentcrew/tool"
)

// shellExecutor runs programs through sh, which reads "-" from stdin just
// like python does.
func shellExecutor(t *testing.T, optFns ...func(o *PythonExecutorOptions)) *PythonExecutor {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	return NewPythonExecutor(append([]func(o *PythonExecutorOptions){func(o *PythonExecutorOptions) {
		o.Interpreter = "sh"
	}}, optFns...)...)
}

func TestPythonExecutorSuccess(t *testing.T) {
	dir := t.TempDir()
	e := shellExecutor(t, func(o *PythonExecutorOptions) { o.WorkDir = dir })

	res, err := e.Execute(context.Background(), "echo hello\necho out > result.txt")
	require.NoError(t, err)

	assert.True(t, res.Success())
	assert.Equal(t, "hello\n", res.Stdout)
	assert.FileExists(t, filepath.Join(dir, "result.txt"))
}

func TestPythonExecutorExitCode(t *testing.T) {
	e := shellExecutor(t)

	res, err := e.Execute(context.Background(), "echo broken >&2\nexit 3")
	require.NoError(t, err)

	assert.False(t, res.Success())
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "broken\n", res.Stderr)
}

func TestPythonExecutorTimeout(t *testing.T) {
	e := shellExecutor(t, func(o *PythonExecutorOptions) { o.Timeout = 50 * time.Millisecond })

	_, err := e.Execute(context.Background(), "exec sleep 5")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestPythonExecutorCancel(t *testing.T) {
	e := shellExecutor(t)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := e.Execute(ctx, "exec sleep 5")
	require.ErrorIs(t, err, context.Canceled)
}

func TestPythonExecutorTruncatesOutput(t *testing.T) {
	e := shellExecutor(t, func(o *PythonExecutorOptions) { o.MaxOutputBytes = 4 })

	res, err := e.Execute(context.Background(), "echo 0123456789")
	require.NoError(t, err)

	assert.True(t, res.Truncated)
	assert.True(t, strings.HasPrefix(res.Stdout, "0123"))
	assert.Contains(t, res.Stdout, "output truncated")
}

func TestPythonExecutorErrors(t *testing.T) {
	_, err := NewPythonExecutor().Execute(context.Background(), "  ")
	require.Error(t, err)

	missing := NewPythonExecutor(func(o *PythonExecutorOptions) {
		o.Interpreter = filepath.Join(os.TempDir(), "no-such-interpreter")
	})
	_, err = missing.Execute(context.Background(), "print(1)")
	require.Error(t, err)
}

type mockExecutor struct{ mock.Mock }

func (m *mockExecutor) Execute(ctx context.Context, code string) (*Result, error) {
	args := m.Called(ctx, code)
	res, _ := args.Get(0).(*Result)
	return res, args.Error(1)
}

func expectExecute(code string, res *Result, err error) *mockExecutor {
	m := &mockExecutor{}
	m.On("Execute", mock.Anything, code).Return(res, err).Once()
	return m
}

func invokeRunPython(t *testing.T, e Executor, code string) (string, error) {
	t.Helper()

	reg, err := tool.NewRegistry(NewRunPythonTool(e))
	require.NoError(t, err)

	call := testutil.Call("c1", RunPythonToolName, `{"code":`+quote(code)+`}`)
	tc := core.NewToolContext(context.Background(), "coder", call, logging.NoOpLogger{})

	return reg.Invoke(tc, call)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}

func TestRunPythonTool(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		e := expectExecute("print(42)", &Result{Stdout: "42\n"}, nil)

		out, err := invokeRunPython(t, e, "print(42)")
		require.NoError(t, err)
		e.AssertExpectations(t)
		assert.Equal(t, "Successfully executed:\n```python\nprint(42)\n```\nStdout: 42\n", out)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		_, err := invokeRunPython(t, expectExecute("print(x)", &Result{ExitCode: 1, Stderr: "NameError: x"}, nil), "print(x)")

		var toolErr *tool.ToolError
		require.ErrorAs(t, err, &toolErr)
		assert.Equal(t, tool.CodeExecution, toolErr.Code)
		assert.Contains(t, toolErr.Message, "NameError: x")
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := invokeRunPython(t, expectExecute("while True: pass", nil, ErrTimeout), "while True: pass")

		var toolErr *tool.ToolError
		require.ErrorAs(t, err, &toolErr)
		assert.Equal(t, tool.CodeTimeout, toolErr.Code)
	})

	t.Run("executor failure", func(t *testing.T) {
		_, err := invokeRunPython(t, expectExecute("print(1)", nil, errors.New("no interpreter")), "print(1)")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no interpreter")
	})

	t.Run("missing code", func(t *testing.T) {
		e := &mockExecutor{}
		reg, err := tool.NewRegistry(NewRunPythonTool(e))
		require.NoError(t, err)

		call := testutil.Call("c1", RunPythonToolName, "")
		_, err = reg.Invoke(core.NewToolContext(context.Background(), "coder", call, nil), call)

		var toolErr *tool.ToolError
		require.ErrorAs(t, err, &toolErr)
		assert.Equal(t, tool.CodeValidation, toolErr.Code)
		e.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})
}
