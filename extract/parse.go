package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/ghwhisper/core"
	"github.com/kaptinlin/jsonrepair"
)

var (
	errEmpty      = errors.New("empty output")
	errNotObject  = errors.New("output is not a JSON object")
	errUnknownKey = errors.New("unknown state key")
	errBadValue   = errors.New("value must be string or null")
)

// unmarshalLenient decodes data, repairing malformed JSON (code fences,
// trailing commas, single quotes, truncation) before giving up.
func unmarshalLenient(data string, v any) error {
	err := json.Unmarshal([]byte(data), v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		fixed, rerr := jsonrepair.JSONRepair(data)
		if rerr != nil {
			return err
		}
		return json.Unmarshal([]byte(fixed), v)
	}
	return err
}

// ParseUpdate turns extractor output into a context update. The output must
// be a JSON object whose keys all belong to the registry and whose values
// are strings or null. An empty object is a valid no-op update.
func ParseUpdate(raw string) (core.ContextUpdate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errEmpty
	}

	var decoded any
	if err := unmarshalLenient(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return nil, errNotObject
	}

	upd := make(core.ContextUpdate, len(obj))
	for k, v := range obj {
		if !core.IsContextKey(k) {
			return nil, fmt.Errorf("%w: %q", errUnknownKey, k)
		}
		switch val := v.(type) {
		case nil:
			upd.Clear(core.ContextKey(k))
		case string:
			upd.Set(core.ContextKey(k), strings.TrimSpace(val))
		default:
			return nil, fmt.Errorf("%w: %q has %T", errBadValue, k, v)
		}
	}
	return upd, nil
}
