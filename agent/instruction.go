package agent

import (
	"context"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/internal/util"
)

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context, log core.Log) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, log core.Log) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, log core.Log) (string, error) { return f(ctx, log) }

// Instruction represents either a static instruction string or a dynamic provider.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, log core.Log) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// NewInstructionFromTemplate renders text as a text/template on every turn.
// Besides vars the template sees session_id, run_id and turn_count.
func NewInstructionFromTemplate(text string, vars map[string]any) Instruction {
	return NewInstructionFromFunc(func(ctx context.Context, log core.Log) (string, error) {
		data := make(map[string]any, len(vars)+3)
		for k, v := range vars {
			data[k] = v
		}

		info, _ := core.RunInfoFrom(ctx)
		data["session_id"] = info.SessionID
		data["run_id"] = info.RunID
		data["turn_count"] = len(log)

		return util.RenderTemplate(text, data)
	})
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// IsZero reports whether the instruction was never set.
func (i Instruction) IsZero() bool { return i.provider == nil && i.text == "" }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx context.Context, log core.Log) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, log)
	}
	return i.text, nil
}
