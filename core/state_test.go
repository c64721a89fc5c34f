package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenUsage_Add(t *testing.T) {
	a := TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	b := TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5}

	assert.Equal(t, TokenUsage{PromptTokens: 13, CompletionTokens: 7, TotalTokens: 20}, a.Add(&b))
	assert.Equal(t, a.Add(&b), b.Add(&a))
	assert.Equal(t, a, a.Add(nil))
	assert.Equal(t, a, a.Add(&TokenUsage{}))
	assert.True(t, TokenUsage{}.IsZero())
}

func TestConversationState_ApplyMergeRules(t *testing.T) {
	s := NewConversationState("t1")
	s.Context[ActiveOrg] = "acme"
	s.Context[ActiveBranch] = "main"
	s.Usage = TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}

	one := 1
	s.Apply(Update{
		Messages:       []Message{HumanMessage{Text: "hi"}, AIMessage{Text: "hello"}},
		Context:        ContextUpdate{}.Set(ActiveRepo, "acme/api").Clear(ActiveBranch),
		ToolRetryCount: &one,
		Usage:          &TokenUsage{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5},
	})

	require.Len(t, s.Messages, 2)
	assert.Equal(t, HumanMessage{Text: "hi"}, s.Messages[0])

	org, ok := s.ContextValue(ActiveOrg)
	assert.True(t, ok)
	assert.Equal(t, "acme", org, "absent keys leave the field untouched")

	repo, _ := s.ContextValue(ActiveRepo)
	assert.Equal(t, "acme/api", repo)

	_, ok = s.ContextValue(ActiveBranch)
	assert.False(t, ok, "nil value clears the field")

	assert.Equal(t, 1, s.ToolRetryCount)
	assert.Equal(t, TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7}, s.Usage)

	s.Apply(Update{Messages: []Message{HumanMessage{Text: "again"}}})
	assert.Equal(t, 1, s.ToolRetryCount, "nil retry count keeps the previous value")
	assert.Len(t, s.Messages, 3)
}

func TestConversationState_ApplyIgnoresUnknownKeys(t *testing.T) {
	s := NewConversationState("t1")
	v := "x"
	s.Apply(Update{Context: ContextUpdate{ContextKey("activeProject"): &v}})
	assert.Empty(t, s.Context)
}

func TestConversationState_Clone(t *testing.T) {
	s := NewConversationState("t1")
	s.Context[ActiveRepo] = "a/b"
	s.Messages = append(s.Messages, HumanMessage{Text: "x"})

	c := s.Clone()
	c.Context[ActiveRepo] = "c/d"
	c.Messages = append(c.Messages, AIMessage{Text: "y"})

	assert.Equal(t, "a/b", s.Context[ActiveRepo])
	assert.Len(t, s.Messages, 1)
	assert.NotSame(t, s, c)
}

func TestConversationState_JSONRoundTrip(t *testing.T) {
	s := NewConversationState("t1")
	s.Context[ActiveRepo] = "a/b"
	s.Apply(Update{Messages: []Message{
		SystemMessage{Text: "sys"},
		HumanMessage{Text: "list issues"},
		AIMessage{ToolCalls: []ToolCall{{ID: "c1", Name: "list_issues", Arguments: map[string]any{"owner": "a"}}}},
		ToolMessage{Text: "[]", CallID: "c1"},
		AIMessage{Text: "No issues."},
	}})

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var got ConversationState
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, s.Messages, got.Messages)
	assert.Equal(t, s.Context, got.Context)
	assert.Equal(t, "t1", got.ThreadID)
}

func TestMessages_UnmarshalUnknownType(t *testing.T) {
	var ms Messages
	err := json.Unmarshal([]byte(`[{"type":"function","text":"x"}]`), &ms)
	assert.Error(t, err)
}

func TestMessageHelpers(t *testing.T) {
	msgs := []Message{
		HumanMessage{Text: "first"},
		AIMessage{Text: "answer"},
		HumanMessage{Text: "second"},
		ToolMessage{Text: "out", CallID: "1"},
	}
	assert.Equal(t, "second", LastHumanText(msgs))
	text, ok := LastAIText(msgs)
	assert.True(t, ok)
	assert.Equal(t, "answer", text)
	assert.Equal(t, "out", MessageText(msgs[3]))
	assert.Equal(t, "", LastHumanText(nil))
	assert.False(t, AIMessage{}.HasToolCalls())
}

func TestContextRegistry(t *testing.T) {
	assert.Equal(t, []ContextKey{ActiveOrg, ActiveRepo, ActiveBranch}, ContextKeys())
	assert.True(t, IsContextKey("activeRepo"))
	assert.False(t, IsContextKey("activeTeam"))
	for _, f := range ContextFields() {
		assert.NotEmpty(t, f.Description)
		assert.NotEmpty(t, f.Examples)
	}
}

func TestToolDescriptor_Parameters(t *testing.T) {
	d := ToolDescriptor{Name: "x"}
	p := d.Parameters()
	assert.Equal(t, "object", p["type"])
	assert.Equal(t, map[string]any{}, p["properties"])

	d.InputSchema = json.RawMessage(`{"type":"object","properties":{"owner":{"type":"string"}},"required":["owner"]}`)
	p = d.Parameters()
	assert.Contains(t, p["properties"], "owner")
	assert.Equal(t, []any{"owner"}, p["required"])
}

func TestPendingToolCalls(t *testing.T) {
	a := ToolCall{ID: "a", Name: "get_me"}
	b := ToolCall{ID: "b", Name: "list_issues"}

	msgs := []Message{HumanMessage{Text: "hi"}, AIMessage{ToolCalls: []ToolCall{a, b}}}
	assert.Equal(t, []ToolCall{a, b}, PendingToolCalls(msgs))

	msgs = append(msgs, ToolMessage{Text: "me", CallID: "a"})
	assert.Equal(t, []ToolCall{b}, PendingToolCalls(msgs))

	msgs = append(msgs, ToolMessage{Text: "[]", CallID: "b"})
	assert.Empty(t, PendingToolCalls(msgs))

	assert.Empty(t, PendingToolCalls([]Message{AIMessage{Text: "done"}}))
	assert.Empty(t, PendingToolCalls([]Message{AIMessage{ToolCalls: []ToolCall{a}}, HumanMessage{Text: "next"}}))
	assert.Empty(t, PendingToolCalls(nil))
}
