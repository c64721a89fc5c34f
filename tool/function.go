package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// FunctionTool exposes a plain Go function as a Tool.
//
// The parameter schema is resolved once at construction; Call validates the
// supplied arguments against it before invoking the function. Failures are
// normalized to *ToolError:
//
//	schema violation       -> SCHEMA_MISMATCH (message starts with SchemaMismatchMarker)
//	*ToolError from fn     -> forwarded unchanged
//	any other error        -> EXECUTION_ERROR
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	resolved    *jsonschema.Resolved
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
//
// Example:
//
//	echo, err := tool.NewFunctionTool(
//	  "echo",
//	  "Echo the given text",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{"text": map[string]any{"type": "string"}},
//	    "required": []string{"text"},
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) { return args["text"], nil },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) (*FunctionTool, error) {
	if parameters == nil {
		parameters = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	rs, err := resolveSchemaMap(parameters)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		resolved:    rs,
		fn:          fn,
	}, nil
}

// NewTypedTool derives the parameter schema from ArgType and decodes the
// validated arguments into it before calling fn.
func NewTypedTool[ArgType any](
	name, description string,
	fn func(ctx context.Context, args ArgType) (any, error),
) (*FunctionTool, error) {
	schema, err := jsonschema.For[ArgType](nil)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, err
	}
	return NewFunctionTool(name, description, params, func(ctx context.Context, args map[string]any) (any, error) {
		var v ArgType
		raw, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, NewToolError(name, fmt.Sprintf("%s: %v", SchemaMismatchMarker, err), CodeSchemaMismatch)
		}
		return fn(ctx, v)
	})
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args then invokes the underlying function.
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := validateArgs(t.resolved, args); err != nil {
		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("%s: %v", SchemaMismatchMarker, err),
			Code:    CodeSchemaMismatch,
			Details: err.Error(),
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		var te *ToolError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}
	return result, nil
}
