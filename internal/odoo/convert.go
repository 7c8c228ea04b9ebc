package odoo

import "errors"

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}

// asInt64 converts the numeric shapes encoding/json produces into an
// int64. Odoo returns false (not null) for a failed login, so booleans
// land here too and report failure.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func toInt64Slice(v any) []int64 {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		if n, ok := asInt64(item); ok {
			out = append(out, n)
		}
	}
	return out
}

func toRecordSlice(v any) []map[string]any {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if rec, ok := item.(map[string]any); ok {
			out = append(out, rec)
		}
	}
	return out
}

func idsToArgs(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
