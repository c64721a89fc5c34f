package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/hupe1980/ghwhisper/core"
)

// Handler produces a canned tool result.
type Handler func(args map[string]any) (any, error)

// FakeProvider is an in-memory tool provider with canned results. It
// records every invocation and counts ListTools calls.
type FakeProvider struct {
	mu        sync.Mutex
	descs     []core.ToolDescriptor
	handlers  map[string]Handler
	calls     []core.ToolCall
	listCalls int
}

// NewFakeProvider creates an empty provider.
func NewFakeProvider() *FakeProvider {
	return &FakeProvider{handlers: map[string]Handler{}}
}

// Add registers a tool with an optional JSON schema (chainable).
func (p *FakeProvider) Add(name, schema string, h Handler) *FakeProvider {
	d := core.ToolDescriptor{Name: name, Description: name + " tool"}
	if schema != "" {
		d.InputSchema = json.RawMessage(schema)
	}
	p.descs = append(p.descs, d)
	p.handlers[name] = h
	return p
}

// ListTools implements tool.Provider.
func (p *FakeProvider) ListTools(context.Context) ([]core.ToolDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	out := make([]core.ToolDescriptor, len(p.descs))
	copy(out, p.descs)
	return out, nil
}

// Invoke implements tool.Provider.
func (p *FakeProvider) Invoke(_ context.Context, name string, args map[string]any) (any, error) {
	p.mu.Lock()
	p.calls = append(p.calls, core.ToolCall{Name: name, Arguments: args})
	h, ok := p.handlers[name]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no handler for %s", name)
	}
	return h(args)
}

// Calls returns the recorded invocations in order.
func (p *FakeProvider) Calls() []core.ToolCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.ToolCall, len(p.calls))
	copy(out, p.calls)
	return out
}

// ListCalls returns how often ListTools ran.
func (p *FakeProvider) ListCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls
}
