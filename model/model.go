package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/ghwhisper/core"
)

// ErrNoResponse is returned by Complete when a model closes its stream
// without emitting a final response.
var ErrNoResponse = errors.New("model produced no final response")

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolDefinitions converts provider descriptors into model tool definitions,
// preserving order.
func ToolDefinitions(descs []core.ToolDescriptor) []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(descs))
	for _, d := range descs {
		defs = append(defs, ToolDefinition{
			Type: "function",
			Function: FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters(),
			},
		})
	}
	return defs
}

// Request captures the normalized model input produced by pipeline nodes.
type Request struct {
	Instructions string           `json:"instructions"` // System prompt
	Messages     []core.Message   `json:"messages"`     // Conversation history
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
	// JSON constrains the reply to a single JSON object.
	JSON bool `json:"json,omitempty"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string           `json:"id"`
	Partial      bool             `json:"partial"`
	Text         string           `json:"text"`
	ToolCalls    []core.ToolCall  `json:"tool_calls,omitempty"`
	FinishReason string           `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *core.TokenUsage `json:"usage,omitempty"`
}

// Message converts a final response into the AI message appended to history.
func (r Response) Message() core.AIMessage {
	return core.AIMessage{Text: r.Text, ToolCalls: r.ToolCalls}
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the pipeline to drive generation.
// Implementations emit zero or more partial responses followed by exactly one
// final response, or an error. Both channels are closed when generation ends.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete drains a generation and returns its final response. When onPartial
// is non-nil it receives every partial chunk in order.
func Complete(ctx context.Context, m Model, req Request, onPartial func(Response)) (Response, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		final Response
		got   bool
	)
	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				if onPartial != nil {
					onPartial(r)
				}
				continue
			}
			final, got = r, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if !got {
		return Response{}, ErrNoResponse
	}
	return final, nil
}

// MockModel is a lightweight in-memory Model useful for examples and smoke
// tests. It answers with a canned reply for known prompts or echoes the last
// human message.
type MockModel struct {
	info      Info
	responses map[string]string
}

// NewMockModel constructs a MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      "mock",
			SupportsTools: false,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// Generate implements Model; emits optional streaming word chunks then the final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		input := core.LastHumanText(req.Messages)
		if input == "" && len(req.Messages) > 0 && req.JSON {
			input = core.MessageText(req.Messages[len(req.Messages)-1])
		}
		if input == "" {
			errCh <- fmt.Errorf("no human message provided")
			return
		}
		full, ok := m.responses[input]
		switch {
		case ok:
		case req.JSON:
			full = "{}"
		default:
			full = fmt.Sprintf("Mock response to: %s", input)
		}
		if req.Stream {
			for _, w := range strings.SplitAfter(full, " ") {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: w}:
				}
			}
		}
		usage := core.TokenUsage{
			PromptTokens:     len(strings.Fields(input)),
			CompletionTokens: len(strings.Fields(full)),
		}
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
		respCh <- Response{Text: full, FinishReason: "stop", Usage: &usage}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// DecodeArguments parses a provider's JSON argument string. Malformed or
// empty input yields an empty map so the invoker's schema check reports it.
func DecodeArguments(raw string) map[string]any {
	args := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
