package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/ghwhisper/core"
)

// StaticProvider serves a fixed set of in-process tools.
type StaticProvider struct {
	tools []Tool
	index map[string]Tool
}

// NewStaticProvider builds a provider over tools. Later duplicates of a name
// are ignored.
func NewStaticProvider(tools ...Tool) *StaticProvider {
	p := &StaticProvider{index: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := p.index[t.Name()]; dup {
			continue
		}
		p.tools = append(p.tools, t)
		p.index[t.Name()] = t
	}
	return p
}

// ListTools implements Provider.
func (p *StaticProvider) ListTools(_ context.Context) ([]core.ToolDescriptor, error) {
	descs := make([]core.ToolDescriptor, 0, len(p.tools))
	for _, t := range p.tools {
		schema, err := json.Marshal(t.Parameters())
		if err != nil {
			return nil, fmt.Errorf("tool %s: marshal schema: %w", t.Name(), err)
		}
		descs = append(descs, core.ToolDescriptor{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: schema,
		})
	}
	return descs, nil
}

// Invoke implements Provider.
func (p *StaticProvider) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := p.index[name]
	if !ok {
		return nil, NewToolError(name, "Tool not found: "+name, CodeNotFound)
	}
	return t.Call(ctx, args)
}
