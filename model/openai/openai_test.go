package openai

import (
	"testing"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessages(t *testing.T) {
	req := model.Request{
		Instructions: "be helpful",
		Messages: []core.Message{
			core.HumanMessage{Text: "list issues"},
			core.AIMessage{ToolCalls: []core.ToolCall{{ID: "c1", Name: "list_issues", Arguments: map[string]any{"repo": "a/b"}}}},
			core.ToolMessage{Text: "[]", CallID: "c1"},
			core.AIMessage{Text: "none"},
		},
	}

	msgs := buildMessages(req)
	require.Len(t, msgs, 5)
	assert.NotNil(t, msgs[0].OfSystem)
	assert.NotNil(t, msgs[1].OfUser)
	require.NotNil(t, msgs[2].OfAssistant)
	require.Len(t, msgs[2].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "c1", msgs[2].OfAssistant.ToolCalls[0].ID)
	assert.JSONEq(t, `{"repo":"a/b"}`, msgs[2].OfAssistant.ToolCalls[0].Function.Arguments)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)
	assert.NotNil(t, msgs[4].OfAssistant)
}

func TestBuildParams_JSONAndTools(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.APIKey = "test"
		o.Temperature = 0
	})

	params := m.buildParams(model.Request{JSON: true}, nil)
	assert.NotNil(t, params.ResponseFormat.OfJSONObject)
	assert.Empty(t, params.Tools)

	params = m.buildParams(model.Request{
		Stream: true,
		Tools:  model.ToolDefinitions([]core.ToolDescriptor{{Name: "get_me"}}),
	}, nil)
	assert.Nil(t, params.ResponseFormat.OfJSONObject)
	require.Len(t, params.Tools, 1)
	assert.Equal(t, "get_me", params.Tools[0].Function.Name)
	assert.True(t, params.StreamOptions.IncludeUsage.Value)
}

func TestFlushToolCalls_OrdersByIndex(t *testing.T) {
	calls := flushToolCalls(map[int64]*aggCall{
		1: {id: "b", name: "second", args: `{"x":1}`},
		0: {id: "a", name: "first", args: ``},
	})
	require.Len(t, calls, 2)
	assert.Equal(t, "first", calls[0].Name)
	assert.Equal(t, map[string]any{}, calls[0].Arguments)
	assert.Equal(t, float64(1), calls[1].Arguments["x"])
}
