package tool

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// resolveSchema parses and resolves a raw JSON Schema document. An empty
// document yields a nil schema meaning "accept any object".
func resolveSchema(raw json.RawMessage) (*jsonschema.Resolved, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse input schema: %w", err)
	}
	return s.Resolve(nil)
}

// resolveSchemaMap resolves a schema held as a generic map.
func resolveSchemaMap(m map[string]any) (*jsonschema.Resolved, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return resolveSchema(raw)
}

// validateArgs checks args against a resolved schema. Arguments are first
// normalized through JSON so Go-typed values validate like decoded ones.
func validateArgs(rs *jsonschema.Resolved, args map[string]any) error {
	if rs == nil {
		return nil
	}
	var instance any = map[string]any{}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &instance); err != nil {
			return err
		}
	}
	return rs.Validate(instance)
}
