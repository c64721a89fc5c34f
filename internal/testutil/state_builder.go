package testutil

import (
	"github.com/hupe1980/ghwhisper/core"
)

// StateBuilder provides a fluent helper for constructing conversation state.
// Example:
//
//	st := NewStateBuilder("t1").Repo("acme/api").Human("list issues").Build()
type StateBuilder struct {
	st *core.ConversationState
}

// NewStateBuilder starts an empty state for threadID.
func NewStateBuilder(threadID string) *StateBuilder {
	return &StateBuilder{st: core.NewConversationState(threadID)}
}

// Context sets a context field (chainable).
func (b *StateBuilder) Context(k core.ContextKey, v string) *StateBuilder {
	b.st.Context[k] = v
	return b
}

// Org sets activeOrg (chainable).
func (b *StateBuilder) Org(v string) *StateBuilder { return b.Context(core.ActiveOrg, v) }

// Repo sets activeRepo (chainable).
func (b *StateBuilder) Repo(v string) *StateBuilder { return b.Context(core.ActiveRepo, v) }

// Branch sets activeBranch (chainable).
func (b *StateBuilder) Branch(v string) *StateBuilder { return b.Context(core.ActiveBranch, v) }

// Human appends a human message (chainable).
func (b *StateBuilder) Human(text string) *StateBuilder {
	b.st.Messages = append(b.st.Messages, core.HumanMessage{Text: text})
	return b
}

// AI appends an AI message with optional tool calls (chainable).
func (b *StateBuilder) AI(text string, calls ...core.ToolCall) *StateBuilder {
	b.st.Messages = append(b.st.Messages, core.AIMessage{Text: text, ToolCalls: calls})
	return b
}

// Tool appends a tool message (chainable).
func (b *StateBuilder) Tool(callID, text string) *StateBuilder {
	b.st.Messages = append(b.st.Messages, core.ToolMessage{Text: text, CallID: callID})
	return b
}

// RetryCount sets the tool retry counter (chainable).
func (b *StateBuilder) RetryCount(n int) *StateBuilder {
	b.st.ToolRetryCount = n
	return b
}

// Usage sets the accumulated usage (chainable).
func (b *StateBuilder) Usage(prompt, completion int) *StateBuilder {
	b.st.Usage = core.TokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
	return b
}

// Build returns the constructed state.
func (b *StateBuilder) Build() *core.ConversationState { return b.st }

// Call is a shorthand for a tool call literal.
func Call(id, name string, args map[string]any) core.ToolCall {
	return core.ToolCall{ID: id, Name: name, Arguments: args}
}
