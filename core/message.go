package core

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates the concrete Message variants in serialized form.
type MessageType string

const (
	// MessageTypeSystem marks a SystemMessage.
	MessageTypeSystem MessageType = "system"
	// MessageTypeHuman marks a HumanMessage.
	MessageTypeHuman MessageType = "human"
	// MessageTypeAI marks an AIMessage.
	MessageTypeAI MessageType = "ai"
	// MessageTypeTool marks a ToolMessage.
	MessageTypeTool MessageType = "tool"
)

// Message represents one entry of a conversation. Concrete message types
// implement the unexported isMessage marker enabling a closed set; consumers
// switch on the concrete type.
type Message interface {
	Type() MessageType
	isMessage()
}

// SystemMessage carries instructions for the model.
type SystemMessage struct {
	Text string `json:"text"`
}

// HumanMessage carries a user utterance.
type HumanMessage struct {
	Text string `json:"text"`
}

// AIMessage is a model reply, optionally requesting tool calls.
type AIMessage struct {
	Text      string     `json:"text"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolMessage carries the outcome of one tool call back to the model.
type ToolMessage struct {
	Text   string `json:"text"`
	CallID string `json:"call_id"`
}

// Type implements Message.
func (SystemMessage) Type() MessageType { return MessageTypeSystem }

// Type implements Message.
func (HumanMessage) Type() MessageType { return MessageTypeHuman }

// Type implements Message.
func (AIMessage) Type() MessageType { return MessageTypeAI }

// Type implements Message.
func (ToolMessage) Type() MessageType { return MessageTypeTool }

func (SystemMessage) isMessage() {}
func (HumanMessage) isMessage()  {}
func (AIMessage) isMessage()     {}
func (ToolMessage) isMessage()   {}

// HasToolCalls reports whether the AI message requests at least one tool call.
func (m AIMessage) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// MessageText returns the text payload of any message variant.
func MessageText(m Message) string {
	switch msg := m.(type) {
	case SystemMessage:
		return msg.Text
	case HumanMessage:
		return msg.Text
	case AIMessage:
		return msg.Text
	case ToolMessage:
		return msg.Text
	default:
		return ""
	}
}

// LastHumanText returns the text of the most recent human message,
// or "" when the conversation has none.
func LastHumanText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if hm, ok := messages[i].(HumanMessage); ok {
			return hm.Text
		}
	}
	return ""
}

// LastAIText returns the text of the most recent AI message.
func LastAIText(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if am, ok := messages[i].(AIMessage); ok {
			return am.Text, true
		}
	}
	return "", false
}

// PendingToolCalls returns the calls of the trailing AI message that no
// later tool message answers. Models reject histories with such calls.
func PendingToolCalls(messages []Message) []ToolCall {
	answered := map[string]bool{}
	for i := len(messages) - 1; i >= 0; i-- {
		switch m := messages[i].(type) {
		case ToolMessage:
			answered[m.CallID] = true
		case AIMessage:
			var pending []ToolCall
			for _, c := range m.ToolCalls {
				if !answered[c.ID] {
					pending = append(pending, c)
				}
			}
			return pending
		default:
			return nil
		}
	}
	return nil
}

// messageEnvelope is the tagged wire shape used to persist messages.
type messageEnvelope struct {
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	ToolCalls []ToolCall  `json:"tool_calls,omitempty"`
	CallID    string      `json:"call_id,omitempty"`
}

// Messages is an ordered conversation that round-trips through JSON.
type Messages []Message

// MarshalJSON encodes each message with an explicit type tag.
func (ms Messages) MarshalJSON() ([]byte, error) {
	envs := make([]messageEnvelope, 0, len(ms))
	for _, m := range ms {
		switch msg := m.(type) {
		case SystemMessage:
			envs = append(envs, messageEnvelope{Type: MessageTypeSystem, Text: msg.Text})
		case HumanMessage:
			envs = append(envs, messageEnvelope{Type: MessageTypeHuman, Text: msg.Text})
		case AIMessage:
			envs = append(envs, messageEnvelope{Type: MessageTypeAI, Text: msg.Text, ToolCalls: msg.ToolCalls})
		case ToolMessage:
			envs = append(envs, messageEnvelope{Type: MessageTypeTool, Text: msg.Text, CallID: msg.CallID})
		default:
			return nil, fmt.Errorf("unsupported message type %T", m)
		}
	}
	return json.Marshal(envs)
}

// UnmarshalJSON decodes tagged envelopes back into concrete messages.
func (ms *Messages) UnmarshalJSON(data []byte) error {
	var envs []messageEnvelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}
	out := make(Messages, 0, len(envs))
	for i, env := range envs {
		switch env.Type {
		case MessageTypeSystem:
			out = append(out, SystemMessage{Text: env.Text})
		case MessageTypeHuman:
			out = append(out, HumanMessage{Text: env.Text})
		case MessageTypeAI:
			out = append(out, AIMessage{Text: env.Text, ToolCalls: env.ToolCalls})
		case MessageTypeTool:
			out = append(out, ToolMessage{Text: env.Text, CallID: env.CallID})
		default:
			return fmt.Errorf("message %d: unknown type %q", i, env.Type)
		}
	}
	*ms = out
	return nil
}
