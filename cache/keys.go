package cache

import (
	"encoding/json"
	"strings"
)

// BuildKey derives the deterministic cache key for (operation, params).
// Params are serialized as a canonical JSON object, so two callers that
// assemble the same parameters in different order get the same key.
func BuildKey(op string, params map[string]any) string {
	if len(params) == 0 {
		return op
	}
	raw, err := json.Marshal(params) // object keys are emitted sorted
	if err != nil {
		return op
	}
	return op + "?" + string(raw)
}

// ClassOf returns the operation part of a key, e.g. "suggestions" for
// `suggestions?{"page":1}`.
func ClassOf(key string) string {
	if i := strings.IndexByte(key, '?'); i >= 0 {
		return key[:i]
	}
	return key
}

// KeyParams decodes the parameter object embedded in a key. Returns nil for
// keys without parameters.
func KeyParams(key string) map[string]json.RawMessage {
	i := strings.IndexByte(key, '?')
	if i < 0 {
		return nil
	}
	var params map[string]json.RawMessage
	if err := json.Unmarshal([]byte(key[i+1:]), &params); err != nil {
		return nil
	}
	return params
}
