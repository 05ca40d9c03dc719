package code

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/tool"
)

// RunPythonToolName is the name under which NewRunPythonTool registers.
const RunPythonToolName = "run_python"

// RunPythonArgs are the arguments of the run_python tool.
type RunPythonArgs struct {
	Code string `json:"code" jsonschema:"description=The python code to execute. Print values to see them in the output."`
}

// NewRunPythonTool exposes executor as the run_python tool. A program that
// exits non-zero is reported to the model as a tool error carrying stderr.
func NewRunPythonTool(executor Executor) tool.Tool {
	return tool.NewTypedTool(
		RunPythonToolName,
		"Execute python code and return its output. If you want to see the value of something, print it with print(...).",
		func(tc *core.ToolContext, in RunPythonArgs) (any, error) {
			res, err := executor.Execute(tc.Context(), in.Code)
			if err != nil {
				if errors.Is(err, ErrTimeout) {
					return nil, tool.NewToolError(RunPythonToolName, err.Error(), tool.CodeTimeout)
				}
				return nil, err
			}

			if !res.Success() {
				msg := fmt.Sprintf("failed to execute (exit code %d)", res.ExitCode)
				if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
					msg += ": " + stderr
				}
				return nil, tool.NewToolError(RunPythonToolName, msg, tool.CodeExecution)
			}

			return formatSuccess(in.Code, res), nil
		},
	)
}

func formatSuccess(code string, res *Result) string {
	var sb strings.Builder

	sb.WriteString("Successfully executed:\n```python\n")
	sb.WriteString(strings.TrimRight(code, "\n"))
	sb.WriteString("\n```\nStdout: ")
	sb.WriteString(res.Stdout)

	if stderr := strings.TrimSpace(res.Stderr); stderr != "" {
		sb.WriteString("\nStderr: ")
		sb.WriteString(stderr)
	}

	return sb.String()
}
