package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoCall(id string) ToolCall {
	return ToolCall{ID: id, Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)}
}

func TestLogValidate(t *testing.T) {
	t.Run("valid tool turn", func(t *testing.T) {
		c1, c2 := echoCall("c1"), echoCall("c2")
		l := Log{
			NewUserMessage("say hi"),
			NewAssistantMessage("a", "", c1, c2),
			NewToolMessage("a", c1, "hi"),
			NewToolMessage("a", c2, "hi"),
			NewAssistantMessage("a", "hi"),
		}
		assert.NoError(t, l.Validate())
	})

	t.Run("out of order results", func(t *testing.T) {
		c1, c2 := echoCall("c1"), echoCall("c2")
		l := Log{
			NewAssistantMessage("a", "", c1, c2),
			NewToolMessage("a", c2, "hi"),
			NewToolMessage("a", c1, "hi"),
		}
		err := l.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidLog))
	})

	t.Run("orphan tool result", func(t *testing.T) {
		l := Log{NewUserMessage("x"), NewToolMessage("a", echoCall("c1"), "hi")}
		assert.ErrorIs(t, l.Validate(), ErrInvalidLog)
	})

	t.Run("interleaved message before results", func(t *testing.T) {
		c1 := echoCall("c1")
		l := Log{NewAssistantMessage("a", "", c1), NewUserMessage("x"), NewToolMessage("a", c1, "hi")}
		assert.ErrorIs(t, l.Validate(), ErrInvalidLog)
	})

	t.Run("duplicate call ids", func(t *testing.T) {
		l := Log{NewAssistantMessage("a", "", echoCall("c1"), echoCall("c1"))}
		assert.ErrorIs(t, l.Validate(), ErrInvalidLog)
	})

	t.Run("dangling calls are allowed", func(t *testing.T) {
		l := Log{NewAssistantMessage("a", "", echoCall("c1"))}
		assert.NoError(t, l.Validate())
	})
}

func TestLogPendingToolCalls(t *testing.T) {
	c1, c2 := echoCall("c1"), echoCall("c2")

	l := Log{NewUserMessage("x"), NewAssistantMessage("a", "", c1, c2), NewToolMessage("a", c1, "hi")}
	pending := l.PendingToolCalls()
	require.Len(t, pending, 1)
	assert.Equal(t, "c2", pending[0].ID)

	l.Append(NewToolMessage("a", c2, "hi"))
	assert.Empty(t, l.PendingToolCalls())

	assert.Empty(t, Log{}.PendingToolCalls())
	assert.Empty(t, Log{NewUserMessage("x")}.PendingToolCalls())
}

func TestLogCloseDanglingCalls(t *testing.T) {
	c1, c2 := echoCall("c1"), echoCall("c2")
	l := Log{NewUserMessage("x"), NewAssistantMessage("a", "", c1, c2)}

	n := l.CloseDanglingCalls("a", "run cancelled")
	assert.Equal(t, 2, n)
	require.Len(t, l, 4)
	assert.Equal(t, "c1", l[2].ToolCallID)
	assert.Equal(t, "c2", l[3].ToolCallID)
	assert.True(t, l[3].IsError)
	assert.Contains(t, l[3].Content, "run cancelled")
	assert.NoError(t, l.Validate())

	assert.Equal(t, 0, l.CloseDanglingCalls("a", "noop"))
}

func TestLogCloneIsDeep(t *testing.T) {
	l := Log{NewAssistantMessage("a", "", echoCall("c1"))}
	c := l.Clone()
	c[0].ToolCalls[0].Arguments[2] = 'X'
	c[0].ToolCalls[0].Name = "other"

	assert.Equal(t, "echo", l[0].ToolCalls[0].Name)
	assert.JSONEq(t, `{"text":"hi"}`, string(l[0].ToolCalls[0].Arguments))
}

func TestLogSinceAndFinal(t *testing.T) {
	l := Log{NewUserMessage("x"), NewAssistantMessage("a", "first"), NewUserMessage("y"), NewAssistantMessage("a", "second")}

	produced := l.Since(2)
	require.Len(t, produced, 2)
	assert.Equal(t, "y", produced[0].Content)
	assert.Empty(t, l.Since(10))

	final, ok := l.FinalMessage()
	require.True(t, ok)
	assert.Equal(t, "second", final.Content)

	_, ok = Log{NewUserMessage("x")}.FinalMessage()
	assert.False(t, ok)
}

func TestLogFilter(t *testing.T) {
	l := Log{NewUserMessage("x"), NewAssistantMessage("a", "reply"), NewUserMessage("y")}
	users := l.Filter(func(m Message) bool { return m.Role == RoleUser })
	require.Len(t, users, 2)
	assert.Equal(t, "y", users[1].Content)
}
