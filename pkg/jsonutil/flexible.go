// Package jsonutil coerces loosely typed request values. Payloads arrive as
// decoded JSON (numbers as json.Number), as URL query strings, or as MCP tool
// arguments (numbers as float64), and the same field may take any of those
// shapes.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// DecodeObject decodes a JSON object, keeping numbers as json.Number so that
// large integers survive. An empty body decodes to an empty map.
func DecodeObject(r io.Reader) (map[string]any, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// DecodeString decodes a JSON document held in a string, numbers as json.Number.
func DecodeString(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return out, nil
}

// FlexibleInt converts v to an int. Strings are trimmed and parsed, and
// fractional values are truncated toward zero. ok is false for anything else,
// including values outside the int range.
func FlexibleInt(v any) (n int, ok bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		if math.IsNaN(t) || t >= math.MaxInt64 || t < math.MinInt64 {
			return 0, false
		}
		return int(math.Trunc(t)), true
	case json.Number:
		return FlexibleInt(string(t))
	case string:
		s := strings.TrimSpace(t)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return FlexibleInt(f)
		}
		return 0, false
	default:
		return 0, false
	}
}

// FlexibleBool converts v to a bool. Accepts booleans, "true"/"1"/"yes"/"on"
// in any case, and non-zero numbers.
func FlexibleBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true
		}
		return false
	default:
		n, ok := FlexibleInt(v)
		return ok && n != 0
	}
}

// FlexibleString renders a scalar as a string. Returns "" for nil.
func FlexibleString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// NormalizeValue converts decoded JSON numbers into driver-friendly values:
// json.Number becomes int64 when integral, float64 otherwise, and integral
// float64 becomes int64. Slices and maps are normalized recursively.
func NormalizeValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = NormalizeValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = NormalizeValue(e)
		}
		return out
	default:
		return v
	}
}
