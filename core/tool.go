package core

import "encoding/json"

// ToolCall describes a model-requested tool invocation.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolDescriptor is the provider-declared shape of a remote tool. InputSchema
// holds the raw JSON Schema object as published by the provider.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Parameters decodes InputSchema into a generic map suitable for model
// function declarations. A missing or malformed schema yields an empty
// object schema.
func (d ToolDescriptor) Parameters() map[string]any {
	params := map[string]any{}
	if len(d.InputSchema) > 0 {
		if err := json.Unmarshal(d.InputSchema, &params); err != nil {
			params = map[string]any{}
		}
	}
	if _, ok := params["type"]; !ok {
		params["type"] = "object"
	}
	if _, ok := params["properties"]; !ok {
		params["properties"] = map[string]any{}
	}
	return params
}
