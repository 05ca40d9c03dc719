package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(context.Context, core.Log) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())
	assert.False(t, inst.IsZero())

	got, err := inst.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_Func(t *testing.T) {
	inst := NewInstructionFromFunc(func(_ context.Context, log core.Log) (string, error) {
		return "dynamic", nil
	})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background(), core.Log{core.NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "dynamic", got)
}

func TestInstruction_ProviderError(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{err: errors.New("boom")})

	_, err := inst.Resolve(context.Background(), nil)
	assert.EqualError(t, err, "boom")
}

func TestInstruction_Template(t *testing.T) {
	inst := NewInstructionFromTemplate("You are {{.name}} in session {{.session_id}} ({{.turn_count}} messages).", map[string]any{
		"name": "analyst",
	})

	ctx := core.WithRunInfo(context.Background(), core.RunInfo{SessionID: "s1", RunID: "r1"})
	got, err := inst.Resolve(ctx, core.Log{core.NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "You are analyst in session s1 (1 messages).", got)
}

func TestInstruction_Zero(t *testing.T) {
	var inst Instruction
	assert.True(t, inst.IsZero())
}
