package openai

import (
	"encoding/json"
	"testing"

	"github.com/openai/openai-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/model"
)

func TestBuildMessages(t *testing.T) {
	req := model.Request{
		Instructions: "be brief",
		Messages: core.Log{
			core.NewUserMessage("weather?"),
			core.NewAssistantMessage("helper", "", core.ToolCall{ID: "c1", Name: "get_weather"}),
			{Role: core.RoleTool, ToolCallID: "c1", Content: "sunny"},
			core.NewAssistantMessage("helper", "It is sunny."),
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 5)

	require.NotNil(t, msgs[0].OfSystem)
	require.NotNil(t, msgs[1].OfUser)

	assistant := msgs[2].OfAssistant
	require.NotNil(t, assistant)
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "c1", assistant.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", assistant.ToolCalls[0].Function.Name)
	assert.Equal(t, "{}", assistant.ToolCalls[0].Function.Arguments)
	assert.Equal(t, openai.String("helper"), assistant.Name)

	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)

	require.NotNil(t, msgs[4].OfAssistant)
	assert.Equal(t, openai.String("It is sunny."), msgs[4].OfAssistant.Content.OfString)
}

func TestBuildParamsTools(t *testing.T) {
	m := NewModel(func(o *Options) { o.Model = "gpt-test" })

	params := m.buildParams(model.Request{}, nil)
	assert.Empty(t, params.Tools)
	assert.Equal(t, "gpt-test", params.Model)

	params = m.buildParams(model.Request{Tools: []model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "echo",
			Description: "Echo text",
			Parameters:  map[string]any{"type": "object"},
		},
	}}}, nil)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "echo", params.Tools[0].Function.Name)
}

func TestRawArguments(t *testing.T) {
	assert.JSONEq(t, `{}`, string(rawArguments("  ")))
	assert.JSONEq(t, `{"a":1}`, string(rawArguments(`{"a":1}`)))
	assert.Equal(t, json.RawMessage(`"not json"`), rawArguments("not json"))
}

func TestFinalMessageOrdersToolCalls(t *testing.T) {
	msg := finalMessage("thinking", map[int64]*aggCall{
		1: {id: "b", name: "second", args: `{"x":2}`},
		0: {id: "a", name: "first"},
	})

	assert.Equal(t, core.RoleAssistant, msg.Role)
	assert.Equal(t, "thinking", msg.Content)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "a", msg.ToolCalls[0].ID)
	assert.JSONEq(t, `{}`, string(msg.ToolCalls[0].Arguments))
	assert.Equal(t, "b", msg.ToolCalls[1].ID)
}

func TestInfo(t *testing.T) {
	assert.Equal(t, "deepseek", NewDeepSeekModel("key").Info().Provider)
	assert.Equal(t, "deepseek-chat", NewDeepSeekModel("key").Info().Name)

	azure := NewAzureModel("https://example.openai.azure.com", "2024-10-21", "key", "my-deployment")
	assert.Equal(t, model.Info{Name: "my-deployment", Provider: "azure_openai", SupportsTools: true}, azure.Info())
}
