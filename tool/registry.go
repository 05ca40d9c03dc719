package tool

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sync"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/util"
	"github.com/hupe1980/agentcrew/model"
)

var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Registry maps tool names to tools, preserving insertion order.
//
// A Registry is built once per agent. After Seal it rejects further
// registrations, so an agent shared by several sessions always advertises
// and resolves the same tools.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	order  []string
	sealed bool
}

// NewRegistry creates a registry pre-populated with tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. It fails with core.ErrDuplicateTool when the name is
// taken and with core.ErrRegistrySealed after Seal.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}

	name := t.Name()
	if !validName.MatchString(name) {
		return fmt.Errorf("invalid tool name %q: must match %s", name, validName.String())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %s: %w", name, core.ErrRegistrySealed)
	}

	if r.tools == nil {
		r.tools = map[string]Tool{}
	}

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered: %w", name, core.ErrDuplicateTool)
	}

	r.tools[name] = t
	r.order = append(r.order, name)

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Resolve returns the named tool or a ToolError with code UNKNOWN_TOOL.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, NewToolError(name, fmt.Sprintf("tool %s not found", name), CodeUnknownTool)
	}

	return t, nil
}

// Tools returns the registered tools in insertion order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}

	return out
}

// Names returns the registered tool names in insertion order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Describe returns the tool definitions advertised to the model, in
// insertion order.
func (r *Registry) Describe() []model.ToolDefinition {
	tools := r.Tools()

	defs := make([]model.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters()
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}

		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}

	return defs
}

// Seal freezes the registry.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sealed
}

// Invoke resolves the tool named by the call, decodes and validates its
// arguments, calls it and serializes the result into tool message content.
// Every failure is returned as a *ToolError.
func (r *Registry) Invoke(toolCtx *core.ToolContext, call core.ToolCall) (string, error) {
	t, err := r.Resolve(call.Name)
	if err != nil {
		return "", err
	}

	args, err := DecodeArguments(call.Arguments)
	if err != nil {
		return "", &ToolError{Tool: call.Name, Message: err.Error(), Code: CodeValidation}
	}

	if params := t.Parameters(); params != nil {
		if err := util.ValidateParameters(args, params); err != nil {
			return "", &ToolError{
				Tool:    call.Name,
				Message: fmt.Sprintf("parameter validation failed: %v", err),
				Code:    CodeValidation,
				Details: err,
			}
		}
	}

	result, err := t.Call(toolCtx, args)
	if err != nil {
		return "", err
	}

	content, err := SerializeResult(result)
	if err != nil {
		return "", &ToolError{Tool: call.Name, Message: err.Error(), Code: CodeExecution}
	}

	return content, nil
}

// DecodeArguments parses raw model arguments into a JSON object. Empty input
// is an empty object.
func DecodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	if args == nil {
		args = map[string]any{}
	}

	return args, nil
}

// SerializeResult renders a tool result as message content. Strings are
// used verbatim; every other value is JSON encoded.
func SerializeResult(v any) (string, error) {
	switch r := v.(type) {
	case nil:
		return "", nil
	case string:
		return r, nil
	case []byte:
		return string(r), nil
	case json.RawMessage:
		return string(r), nil
	case fmt.Stringer:
		return r.String(), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("serialize result: %w", err)
	}

	return string(data), nil
}
