package parser

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// toFloat coerces v with parse-or-null semantics: the bool reports
// whether a usable number came out; it never propagates an error.
func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// toYear coerces v to an integer year. Rows where this fails are
// excluded by the caller.
func toYear(v any) (int, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		i := int(t)
		if float64(i) != t {
			return 0, false
		}
		return i, true
	case int:
		return t, true
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// asString returns v as a trimmed string, or "" for anything that is
// not string-like.
func asString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

// nullableFloat maps the (value, ok) pair to a table cell.
func nullableFloat(f float64, ok bool) any {
	if !ok {
		return nil
	}
	return f
}

// nullableString maps "" to null.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
