// Package tool implements tool discovery and invocation for the turn
// pipeline: an immutable catalog of provider-declared tools with
// pre-resolved input schemas, an invoker that executes model-requested calls
// strictly in order, and in-process function tools.
package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/ghwhisper/core"
)

// Error codes carried by ToolError.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeSchemaMismatch = "SCHEMA_MISMATCH"
	CodeExecution      = "EXECUTION_ERROR"
)

// SchemaMismatchMarker is the message prefix tool providers use when call
// arguments do not conform to the declared input schema.
const SchemaMismatchMarker = "Received tool input did not match expected schema"

// Provider is the external tool backend. ListTools is called once when the
// catalog is built; Invoke executes one call and returns a JSON-serializable
// result or a failure.
type Provider interface {
	ListTools(ctx context.Context) ([]core.ToolDescriptor, error)
	Invoke(ctx context.Context, name string, args map[string]any) (any, error)
}

// Tool is an in-process capability exposed through a StaticProvider.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description returns the description shown to the model.
	Description() string

	// Parameters returns the JSON schema describing the expected input.
	Parameters() map[string]any

	// Call executes the tool with already-decoded arguments.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ToolError represents errors that occur during tool resolution or execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// IsSchemaMismatch reports whether err signals arguments that did not conform
// to the tool's declared input schema, either as a typed ToolError or as a
// provider message carrying SchemaMismatchMarker.
func IsSchemaMismatch(err error) bool {
	if err == nil {
		return false
	}
	var te *ToolError
	if errors.As(err, &te) && te.Code == CodeSchemaMismatch {
		return true
	}
	return strings.Contains(err.Error(), SchemaMismatchMarker)
}

// ErrorMessage extracts the human readable failure text, preferring the bare
// ToolError message over its decorated Error() form.
func ErrorMessage(err error) string {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Message
	}
	return err.Error()
}
