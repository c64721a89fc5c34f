package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/model"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of steps.
var ErrScriptExhausted = errors.New("scripted model: no more steps")

// Step is one scripted model reply.
type Step struct {
	Response model.Response
	Err      error
	// Block makes Generate wait for context cancellation.
	Block bool
}

// Reply scripts a plain text answer with usage.
func Reply(text string, prompt, completion int) Step {
	return Step{Response: model.Response{
		Text:         text,
		FinishReason: "stop",
		Usage:        &core.TokenUsage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion},
	}}
}

// ReplyNoUsage scripts a text answer without usage metadata.
func ReplyNoUsage(text string) Step {
	return Step{Response: model.Response{Text: text, FinishReason: "stop"}}
}

// ReplyTools scripts an answer requesting tool calls.
func ReplyTools(calls ...core.ToolCall) Step {
	return Step{Response: model.Response{
		ToolCalls:    calls,
		FinishReason: "tool_calls",
		Usage:        &core.TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	}}
}

// Fail scripts a model error.
func Fail(err error) Step { return Step{Err: err} }

// ScriptedModel replays queued steps in order and records every request.
// It is safe for concurrent use.
type ScriptedModel struct {
	mu       sync.Mutex
	steps    []Step
	requests []model.Request
}

// NewScriptedModel creates a model that replays steps.
func NewScriptedModel(steps ...Step) *ScriptedModel {
	return &ScriptedModel{steps: steps}
}

// Push appends steps to the script.
func (m *ScriptedModel) Push(steps ...Step) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, steps...)
}

// Requests returns the recorded requests.
func (m *ScriptedModel) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Remaining returns the number of unconsumed steps.
func (m *ScriptedModel) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps)
}

// Generate implements model.Model. Streaming requests emit the text as
// word-sized partial chunks before the final response.
func (m *ScriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	var (
		step Step
		ok   bool
	)
	if len(m.steps) > 0 {
		step, m.steps, ok = m.steps[0], m.steps[1:], true
	}
	m.mu.Unlock()

	out := make(chan model.Response, 64)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		switch {
		case !ok:
			errCh <- ErrScriptExhausted
			return
		case step.Block:
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		case step.Err != nil:
			errCh <- step.Err
			return
		}
		if req.Stream && step.Response.Text != "" {
			for _, w := range strings.SplitAfter(step.Response.Text, " ") {
				select {
				case out <- model.Response{Partial: true, Text: w}:
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				}
			}
		}
		out <- step.Response
	}()
	return out, errCh
}

// Info implements model.Model.
func (m *ScriptedModel) Info() model.Info {
	return model.Info{Name: "scripted", Provider: "test", SupportsTools: true}
}
