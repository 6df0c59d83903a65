package xlscope

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// contextVar names the whole evaluation context inside expressions. Repetition
// clones use it to index their element: "${self[2]}".
const contextVar = "self"

// buildEnv merges globals, the context's top-level fields and the context itself
// into one expression environment. Context fields override globals; contextVar
// always refers to the context.
func buildEnv(context any, globals map[string]any) map[string]any {
	env := make(map[string]any, len(globals)+8)
	for k, v := range globals {
		env[k] = v
	}
	for k, v := range contextFields(context) {
		env[k] = v
	}
	env[contextVar] = context
	return env
}

// contextFields exposes the top-level keys of a map or the exported fields of a
// struct so that expressions can name them directly.
func contextFields(context any) map[string]any {
	if context == nil {
		return nil
	}
	if m, ok := context.(map[string]any); ok {
		return m
	}
	v := reflect.ValueOf(context)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out
	case reflect.Struct:
		t := v.Type()
		out := make(map[string]any, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() {
				continue
			}
			out[f.Name] = v.Field(i).Interface()
		}
		return out
	}
	return nil
}

// toSlice converts any slice or array into []any.
func toSlice(val any) ([]any, error) {
	if val == nil {
		return nil, nil
	}
	if s, ok := val.([]any); ok {
		return s, nil
	}
	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		result := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			result[i] = v.Index(i).Interface()
		}
		return result, nil
	default:
		return nil, fmt.Errorf("cannot iterate over %T", val)
	}
}

// stringify renders a value for error messages, preferring JSON.
func stringify(v any) string {
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
