package tool

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/hupe1980/ghwhisper/core"
	"github.com/hupe1980/ghwhisper/logging"
)

// Entry is one catalog tool with its resolved input schema. Resolved is nil
// when the provider published no schema or one that could not be resolved;
// such tools are invoked without client-side validation.
type Entry struct {
	Descriptor core.ToolDescriptor
	Resolved   *jsonschema.Resolved
}

// Catalog is the immutable set of tools discovered at construction. It is
// safe for concurrent reads from any number of turns.
type Catalog struct {
	entries []Entry
	index   map[string]int
}

// CatalogOptions configures catalog construction.
type CatalogOptions struct {
	Logger logging.Logger
}

// NewCatalog lists the provider's tools exactly once and resolves their
// schemas. Duplicate names keep the first occurrence.
func NewCatalog(ctx context.Context, provider Provider, optFns ...func(o *CatalogOptions)) (*Catalog, error) {
	opts := CatalogOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	descs, err := provider.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return newCatalog(descs, opts.Logger), nil
}

// NewCatalogFromDescriptors builds a catalog from already fetched descriptors.
func NewCatalogFromDescriptors(descs []core.ToolDescriptor) *Catalog {
	return newCatalog(descs, logging.NoOpLogger{})
}

func newCatalog(descs []core.ToolDescriptor, logger logging.Logger) *Catalog {
	c := &Catalog{index: make(map[string]int, len(descs))}
	for _, d := range descs {
		if d.Name == "" {
			continue
		}
		if _, dup := c.index[d.Name]; dup {
			logger.Warn("tool.catalog.duplicate", "tool", d.Name)
			continue
		}
		rs, err := resolveSchema(d.InputSchema)
		if err != nil {
			logger.Warn("tool.catalog.schema_unresolved", "tool", d.Name, "error", err.Error())
			rs = nil
		}
		c.index[d.Name] = len(c.entries)
		c.entries = append(c.entries, Entry{Descriptor: d, Resolved: rs})
	}
	logger.Info("tool.catalog.loaded", "count", len(c.entries))
	return c
}

// Lookup resolves a tool by exact name.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	i, ok := c.index[name]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Descriptors returns the catalog's descriptors in discovery order.
func (c *Catalog) Descriptors() []core.ToolDescriptor {
	out := make([]core.ToolDescriptor, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Descriptor
	}
	return out
}

// Len returns the number of tools.
func (c *Catalog) Len() int { return len(c.entries) }

// Validate checks args against the named tool's schema.
func (c *Catalog) Validate(name string, args map[string]any) error {
	e, ok := c.Lookup(name)
	if !ok {
		return NewToolError(name, "Tool not found: "+name, CodeNotFound)
	}
	if err := validateArgs(e.Resolved, args); err != nil {
		return &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("%s: %v", SchemaMismatchMarker, err),
			Code:    CodeSchemaMismatch,
			Details: err.Error(),
		}
	}
	return nil
}
