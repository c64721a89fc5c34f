package core

import (
	"maps"
	"time"
)

// ConversationState is the per-thread state threaded through every pipeline
// node. Context holds only fields that are currently set; an unset field has
// no entry. Nodes never mutate it directly and return an Update instead.
type ConversationState struct {
	ThreadID       string                `json:"thread_id"`
	Messages       Messages              `json:"messages"`
	Context        map[ContextKey]string `json:"context,omitempty"`
	ToolRetryCount int                   `json:"tool_retry_count"`
	Usage          TokenUsage            `json:"token_usage"`
	Created        time.Time             `json:"created"`
	Updated        time.Time             `json:"updated"`
}

// NewConversationState creates the empty state for a thread's first turn.
func NewConversationState(threadID string) *ConversationState {
	now := time.Now().UTC()
	return &ConversationState{
		ThreadID: threadID,
		Messages: Messages{},
		Context:  map[ContextKey]string{},
		Created:  now,
		Updated:  now,
	}
}

// ContextValue returns the value of a context field and whether it is set.
func (s *ConversationState) ContextValue(k ContextKey) (string, bool) {
	v, ok := s.Context[k]
	return v, ok
}

// LastMessage returns the most recent message or nil for an empty thread.
func (s *ConversationState) LastMessage() Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

// Update is the partial result of one pipeline node.
//
// Merge rules (see Apply):
//   - Messages are appended in order
//   - Context entries set or clear individual fields; unknown keys are ignored
//   - ToolRetryCount overwrites when non-nil
//   - Usage is added to the running total
type Update struct {
	Messages       []Message
	Context        ContextUpdate
	ToolRetryCount *int
	Usage          *TokenUsage
}

// IsEmpty reports whether applying u would leave the state unchanged.
func (u Update) IsEmpty() bool {
	return len(u.Messages) == 0 && len(u.Context) == 0 && u.ToolRetryCount == nil &&
		(u.Usage == nil || u.Usage.IsZero())
}

// Apply merges u into the state.
func (s *ConversationState) Apply(u Update) {
	if u.IsEmpty() {
		return
	}
	s.Messages = append(s.Messages, u.Messages...)
	if s.Context == nil {
		s.Context = map[ContextKey]string{}
	}
	for k, v := range u.Context {
		if !IsContextKey(string(k)) {
			continue
		}
		if v == nil {
			delete(s.Context, k)
			continue
		}
		s.Context[k] = *v
	}
	if u.ToolRetryCount != nil {
		s.ToolRetryCount = *u.ToolRetryCount
	}
	s.Usage = s.Usage.Add(u.Usage)
	s.Updated = time.Now().UTC()
}

// Clone returns a deep copy safe for independent mutation.
func (s *ConversationState) Clone() *ConversationState {
	c := *s
	c.Messages = make(Messages, len(s.Messages))
	copy(c.Messages, s.Messages)
	c.Context = maps.Clone(s.Context)
	if c.Context == nil {
		c.Context = map[ContextKey]string{}
	}
	return &c
}
