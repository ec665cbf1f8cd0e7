package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// GetByPath returns the value at a dot-notation path such as
// "documents.renderer". Segments match the JSON field names. A path that
// stops at a section returns the whole section.
func GetByPath(cfg *Config, path string) (any, error) {
	v, err := lookup(reflect.ValueOf(cfg).Elem(), path)
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// SetByPath parses raw according to the type of the field at path and
// assigns it. cfg is left untouched unless the updated config validates.
func SetByPath(cfg *Config, path, raw string) error {
	next := *cfg
	field, err := lookup(reflect.ValueOf(&next).Elem(), path)
	if err != nil {
		return err
	}
	if err := assign(field, raw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := Validate(&next); err != nil {
		return err
	}
	*cfg = next
	return nil
}

// ListPaths returns every settable leaf path with its current value.
func ListPaths(cfg *Config) map[string]any {
	out := make(map[string]any)
	walkLeaves("", reflect.ValueOf(cfg).Elem(), func(path string, v reflect.Value) {
		out[path] = v.Interface()
	})
	return out
}

// Sanitize returns a copy of the config with fields tagged secret masked.
func Sanitize(cfg *Config) *Config {
	masked := *cfg
	walkSecrets(reflect.ValueOf(&masked).Elem())
	return &masked
}

func lookup(v reflect.Value, path string) (reflect.Value, error) {
	if strings.TrimSpace(path) == "" {
		return reflect.Value{}, fmt.Errorf("empty path")
	}
	for _, key := range strings.Split(path, ".") {
		if v.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("unknown key %q: %s is not a section", path, key)
		}
		i := fieldIndex(v.Type(), key)
		if i < 0 {
			return reflect.Value{}, fmt.Errorf("unknown key %q", path)
		}
		v = v.Field(i)
	}
	return v, nil
}

func fieldIndex(t reflect.Type, key string) int {
	for i := 0; i < t.NumField(); i++ {
		if jsonName(t.Field(i)) == key {
			return i
		}
	}
	return -1
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" {
		return f.Name
	}
	return name
}

func assign(v reflect.Value, raw string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", raw)
		}
		v.SetBool(b)
	case reflect.Int:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 0)
		if err != nil {
			return fmt.Errorf("expected an integer, got %q", raw)
		}
		v.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return fmt.Errorf("expected a number, got %q", raw)
		}
		v.SetFloat(f)
	case reflect.Struct:
		return fmt.Errorf("is a section; set one of its keys instead")
	default:
		return fmt.Errorf("unsupported field type %s", v.Type())
	}
	return nil
}

func walkLeaves(prefix string, v reflect.Value, fn func(string, reflect.Value)) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		path := jsonName(t.Field(i))
		if prefix != "" {
			path = prefix + "." + path
		}
		if f := v.Field(i); f.Kind() == reflect.Struct {
			walkLeaves(path, f, fn)
		} else {
			fn(path, f)
		}
	}
}

func walkSecrets(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		switch {
		case f.Kind() == reflect.Struct:
			walkSecrets(f)
		case t.Field(i).Tag.Get("secret") == "true" && f.Kind() == reflect.String && f.String() != "":
			f.SetString(maskString(f.String()))
		}
	}
}

// maskString shows first 4 and last 4 chars, masks the rest.
func maskString(s string) string {
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
