package tool

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
)

func testToolContext(callID string) *core.ToolContext {
	ctx := core.WithRunInfo(context.Background(), core.RunInfo{SessionID: "s1", RunID: "r1"})
	return core.NewToolContext(ctx, "tester", core.ToolCall{ID: callID, Name: "test"}, nil)
}

// -------------------- FunctionTool Tests --------------------

func sumTool() *FunctionTool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	return NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		a := args["a"].(float64)
		b := args["b"].(float64)
		return a + b, nil
	})
}

func TestFunctionTool_Success(t *testing.T) {
	result, err := sumTool().Call(testToolContext("fc1"), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	_, err := sumTool().Call(testToolContext("fc2"), map[string]any{"a": 1.0})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
	assert.ErrorIs(t, err, core.ErrInvalidArguments)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	failing := NewFunctionTool("fail", "Always fails", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("kaboom")
	})

	_, err := failing.Call(testToolContext("fc3"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.Equal(t, "kaboom", toolErr.Message)
	assert.ErrorIs(t, err, core.ErrToolExecution)
}

func TestFunctionTool_CustomToolErrorPassesThrough(t *testing.T) {
	custom := NewFunctionTool("custom", "Custom error", nil, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, NewToolError("custom", "quota exhausted", "QUOTA")
	})

	_, err := custom.Call(testToolContext("fc4"), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "QUOTA", toolErr.Code)
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("run_sql", "syntax error", CodeExecution)
	assert.Equal(t, "tool error [EXECUTION_ERROR] in run_sql: syntax error", err.Error())

	err = &ToolError{Tool: "run_sql", Message: "oops"}
	assert.Equal(t, "tool error in run_sql: oops", err.Error())
}

// -------------------- TypedTool Tests --------------------

type echoArgs struct {
	Text   string `json:"text" jsonschema:"description=Text to echo back"`
	Repeat int    `json:"repeat,omitempty"`
}

func echoTool() *FunctionTool {
	return NewTypedTool("echo", "Echo the given text", func(_ *core.ToolContext, in echoArgs) (any, error) {
		out := in.Text
		for i := 1; i < in.Repeat; i++ {
			out += " " + in.Text
		}
		return out, nil
	})
}

func TestTypedToolSchema(t *testing.T) {
	schema := echoTool().Parameters()
	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	text, ok := props["text"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", text["type"])
	assert.Equal(t, "Text to echo back", text["description"])

	assert.Equal(t, []any{"text"}, schema["required"])
}

func TestTypedToolCall(t *testing.T) {
	out, err := echoTool().Call(testToolContext("c1"), map[string]any{"text": "hi", "repeat": float64(2)})
	require.NoError(t, err)
	assert.Equal(t, "hi hi", out)

	_, err = echoTool().Call(testToolContext("c2"), map[string]any{})
	assert.ErrorIs(t, err, core.ErrInvalidArguments)
}

// -------------------- Registry Tests --------------------

func TestRegistryRegisterAndResolve(t *testing.T) {
	r, err := NewRegistry(echoTool(), sumTool())
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"echo", "sum"}, r.Names())

	tl, err := r.Resolve("sum")
	require.NoError(t, err)
	assert.Equal(t, "sum", tl.Name())

	_, err = r.Resolve("missing")
	assert.ErrorIs(t, err, core.ErrUnknownTool)
	assert.Contains(t, err.Error(), "tool missing not found")
}

func TestRegistryDuplicate(t *testing.T) {
	r, err := NewRegistry(echoTool())
	require.NoError(t, err)

	err = r.Register(echoTool())
	assert.ErrorIs(t, err, core.ErrDuplicateTool)
	assert.Equal(t, 1, r.Len())

	_, err = NewRegistry(echoTool(), echoTool())
	assert.ErrorIs(t, err, core.ErrDuplicateTool)
}

func TestRegistryInvalidName(t *testing.T) {
	r, _ := NewRegistry()
	bad := NewFunctionTool("has space", "x", nil, func(*core.ToolContext, map[string]any) (any, error) { return nil, nil })
	assert.Error(t, r.Register(bad))
	assert.Error(t, r.Register(nil))
}

func TestRegistrySeal(t *testing.T) {
	r, _ := NewRegistry(echoTool())
	r.Seal()
	assert.True(t, r.Sealed())
	assert.ErrorIs(t, r.Register(sumTool()), core.ErrRegistrySealed)
	assert.Panics(t, func() { r.MustRegister(sumTool()) })
}

func TestRegistryDescribeIsStable(t *testing.T) {
	r, _ := NewRegistry(sumTool(), echoTool())

	for i := 0; i < 5; i++ {
		defs := r.Describe()
		require.Len(t, defs, 2)
		assert.Equal(t, "sum", defs[0].Function.Name)
		assert.Equal(t, "echo", defs[1].Function.Name)
		assert.Equal(t, "function", defs[0].Type)
		assert.Equal(t, "Add numbers", defs[0].Function.Description)
	}
}

func TestRegistryInvoke(t *testing.T) {
	r, _ := NewRegistry(echoTool(), sumTool())

	out, err := r.Invoke(testToolContext("c1"), core.ToolCall{ID: "c1", Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)

	out, err = r.Invoke(testToolContext("c2"), core.ToolCall{ID: "c2", Name: "sum", Arguments: json.RawMessage(`{"a":1,"b":2}`)})
	require.NoError(t, err)
	assert.Equal(t, "3", out)

	_, err = r.Invoke(testToolContext("c3"), core.ToolCall{ID: "c3", Name: "nope"})
	assert.ErrorIs(t, err, core.ErrUnknownTool)

	_, err = r.Invoke(testToolContext("c4"), core.ToolCall{ID: "c4", Name: "echo", Arguments: json.RawMessage(`{not json`)})
	assert.ErrorIs(t, err, core.ErrInvalidArguments)

	_, err = r.Invoke(testToolContext("c5"), core.ToolCall{ID: "c5", Name: "sum", Arguments: json.RawMessage(`{"a":"x","b":2}`)})
	assert.ErrorIs(t, err, core.ErrInvalidArguments)
}

func TestRegistryConcurrentReads(t *testing.T) {
	r, _ := NewRegistry(echoTool(), sumTool())
	r.Seal()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Invoke(testToolContext("c"), core.ToolCall{ID: "c", Name: "echo", Arguments: json.RawMessage(`{"text":"x"}`)})
			assert.NoError(t, err)
			assert.Len(t, r.Describe(), 2)
		}()
	}
	wg.Wait()
}

func TestSerializeResult(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"plain", "plain"},
		{[]byte("bytes"), "bytes"},
		{map[string]any{"rows": 2}, `{"rows":2}`},
		{[]int{1, 2}, `[1,2]`},
	}

	for _, c := range cases {
		got, err := SerializeResult(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := SerializeResult(make(chan int))
	assert.Error(t, err)
}
