package tools

import (
	"encoding/json"
	"math"

	"github.com/diogenes-ai-code/ticketcore/internal/errors"
)

// Argument extraction. Tool args arrive as decoded JSON, so numbers show up
// as float64 and json.Number depending on the host's decoder; both are
// accepted everywhere an integer is expected.

func strArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}

func intArg(args map[string]any, key string) int {
	n, ok := asInt64(args[key])
	if !ok {
		return 0
	}
	return int(n)
}

func idArg(args map[string]any, key string) (int64, error) {
	v, present := args[key]
	if !present {
		return 0, errors.Validation("%s is required", key)
	}
	n, ok := asInt64(v)
	if !ok {
		return 0, errors.Validation("%s must be an integer", key)
	}
	return n, nil
}

func idsArg(args map[string]any, key string) ([]int64, error) {
	raw, ok := args[key].([]any)
	if !ok {
		return nil, errors.Validation("%s must be a list of integers", key)
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		n, ok := asInt64(v)
		if !ok {
			return nil, errors.Validation("%s must be a list of integers", key)
		}
		ids = append(ids, n)
	}
	return ids, nil
}

func strSliceArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		if s, ok := args[key].([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func mapArg(args map[string]any, key string) map[string]any {
	if v, ok := args[key].(map[string]any); ok {
		return v
	}
	return nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}
