// Package fieldval parses the key=value field arguments used by the
// create and update commands, inferring Odoo-compatible types from the
// value syntax.
package fieldval

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseValues turns key=value pairs into a field map with inferred
// types: true/false become booleans, null/none become false (how Odoo
// clears a field), quoted text becomes a string with quotes stripped,
// [..] becomes a list, digits become integers, decimals become floats,
// and anything else stays a string.
func ParseValues(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid field %q: expected key=value", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid field %q: field name cannot be empty", pair)
		}
		values[key] = inferValue(strings.TrimSpace(raw))
	}
	return values, nil
}

func inferValue(raw string) any {
	lower := strings.ToLower(raw)
	switch lower {
	case "true":
		return true
	case "false":
		return false
	case "null", "none":
		// Odoo clears fields with false, not null.
		return false
	}

	if len(raw) >= 2 {
		if (raw[0] == '"' && raw[len(raw)-1] == '"') ||
			(raw[0] == '\'' && raw[len(raw)-1] == '\'') {
			return raw[1 : len(raw)-1]
		}
	}

	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		return inferList(raw[1 : len(raw)-1])
	}

	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

// inferList parses a comma-separated list. All-integer content becomes
// []int64 (the common relational-id case); otherwise items stay strings
// with surrounding quotes stripped.
func inferList(body string) any {
	body = strings.TrimSpace(body)
	if body == "" {
		return []any{}
	}

	parts := strings.Split(body, ",")
	ints := make([]int64, 0, len(parts))
	allInts := true
	for _, part := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			allInts = false
			break
		}
		ints = append(ints, n)
	}
	if allInts {
		return ints
	}

	items := make([]string, 0, len(parts))
	for _, part := range parts {
		items = append(items, strings.Trim(strings.TrimSpace(part), `"'`))
	}
	return items
}

// ParseContext parses --context key=value flags into a call context map
// using the same inference rules as field values.
func ParseContext(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	return ParseValues(pairs)
}
