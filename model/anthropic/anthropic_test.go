package anthropic

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessages_ToolResultsInUserTurn(t *testing.T) {
	msgs := buildMessages([]core.Message{
		core.SystemMessage{Text: "ignored here"},
		core.HumanMessage{Text: "list issues"},
		core.AIMessage{Text: "checking", ToolCalls: []core.ToolCall{
			{ID: "c1", Name: "list_issues"},
			{ID: "c2", Name: "get_me"},
		}},
		core.ToolMessage{Text: "[]", CallID: "c1"},
		core.ToolMessage{Text: "{}", CallID: "c2"},
		core.AIMessage{Text: "done"},
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].Content, 3)
	assert.NotNil(t, msgs[1].Content[1].OfToolUse)

	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 2)
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	assert.Equal(t, "c1", msgs[2].Content[0].OfToolResult.ToolUseID)
	assert.Equal(t, "c2", msgs[2].Content[1].OfToolResult.ToolUseID)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[3].Role)
}

func TestSystemBlocks_JSONMode(t *testing.T) {
	blocks := systemBlocks(model.Request{Instructions: "extract", JSON: true})
	require.Len(t, blocks, 2)
	assert.Equal(t, "extract", blocks[0].Text)
	assert.Equal(t, jsonInstruction, blocks[1].Text)
}

func TestBuildTools(t *testing.T) {
	tools := buildTools(model.ToolDefinitions([]core.ToolDescriptor{{
		Name:        "get_file",
		Description: "read a file",
		InputSchema: []byte(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
	}}))
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "get_file", tools[0].OfTool.Name)
	assert.Equal(t, []string{"path"}, tools[0].OfTool.InputSchema.Required)
}
