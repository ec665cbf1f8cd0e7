package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Param describes a single tool parameter.
type Param struct {
	Type        string
	Description string
	Items       string // element type for arrays
}

// ToolParameters builds a JSON Schema "parameters" object for a tool.
func ToolParameters(properties map[string]Param, required []string) map[string]any {
	props := make(map[string]any)
	for name, p := range properties {
		prop := map[string]any{"type": p.Type, "description": p.Description}
		if p.Type == "array" && p.Items != "" {
			prop["items"] = map[string]any{"type": p.Items}
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func ArgsString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// ArgsNumber reads a required number. Numeric strings are accepted because
// orchestrators frequently quote numbers.
func ArgsNumber(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing argument: %s", key)
	}
	n, err := toNumber(v)
	if err != nil {
		return 0, fmt.Errorf("argument %s: %w", key, err)
	}
	return n, nil
}

// ArgsInt reads a required whole number.
func ArgsInt(args map[string]any, key string) (int, error) {
	n, err := ArgsNumber(args, key)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		return 0, fmt.Errorf("argument %s: %v is not a whole number", key, n)
	}
	return int(n), nil
}

// ArgsOptionalInt reads an optional whole number, returning def when absent.
func ArgsOptionalInt(args map[string]any, key string, def int) (int, error) {
	if v, ok := args[key]; !ok || v == nil {
		return def, nil
	}
	return ArgsInt(args, key)
}

// ArgsNumbers reads a list of numbers. A single number is treated as a
// one-element list.
func ArgsNumbers(args map[string]any, key string) ([]float64, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, fmt.Errorf("missing argument: %s", key)
	}
	switch list := v.(type) {
	case []float64:
		return append([]float64(nil), list...), nil
	case []any:
		out := make([]float64, len(list))
		for i, item := range list {
			n, err := toNumber(item)
			if err != nil {
				return nil, fmt.Errorf("argument %s[%d]: %w", key, i, err)
			}
			out[i] = n
		}
		return out, nil
	default:
		n, err := toNumber(v)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", key, err)
		}
		return []float64{n}, nil
	}
}

// ArgsObject reads an optional JSON object.
func ArgsObject(args map[string]any, key string) (map[string]any, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return nil, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("argument %s: expected an object, got %T", key, v)
	}
	return m, nil
}

func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
}
