package tool

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/hupe1980/agentcrew/core"
)

// TypedHandler receives the decoded arguments of a TypedTool call.
type TypedHandler[T any] func(toolCtx *core.ToolContext, input T) (any, error)

// NewTypedTool builds a FunctionTool whose schema is reflected from T with
// invopop/jsonschema and whose handler receives arguments decoded into T.
//
// Field descriptions come from `jsonschema:"description=..."` tags; fields
// without `omitempty` are required.
//
// Example:
//
//	type EchoArgs struct {
//	  Text string `json:"text" jsonschema:"description=Text to echo back"`
//	}
//
//	echo := tool.NewTypedTool("echo", "Echo the given text", func(tc *core.ToolContext, in EchoArgs) (any, error) {
//	  return in.Text, nil
//	})
func NewTypedTool[T any](name, description string, handler TypedHandler[T]) *FunctionTool {
	return NewFunctionTool(name, description, ReflectSchema[T](), func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, NewToolError(name, fmt.Sprintf("encode arguments: %v", err), CodeValidation)
		}

		var input T
		if err := json.Unmarshal(raw, &input); err != nil {
			return nil, NewToolError(name, fmt.Sprintf("decode arguments: %v", err), CodeValidation)
		}

		return handler(toolCtx, input)
	})
}

// ReflectSchema returns the JSON schema of T as a plain map suitable for
// model tool definitions and parameter validation.
func ReflectSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	var zero T
	schema := reflector.Reflect(zero)

	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}

	delete(out, "$schema")
	delete(out, "$id")

	if _, ok := out["properties"]; !ok {
		out["properties"] = map[string]any{}
	}

	out["type"] = "object"

	return out
}
