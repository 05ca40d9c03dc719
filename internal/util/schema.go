package util

import (
	"fmt"
	"math"
	"strconv"
)

// ValidationError reports the first argument that does not match a schema.
// Field is a path such as "filters.columns[2]".
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateParameters checks decoded tool arguments against a JSON schema.
//
// The subset understood is the one reflected schemas and hand-written tool
// schemas use: type, properties, required, enum and items, applied
// recursively. Unknown keywords and extra properties are accepted. A nil
// schema accepts everything.
func ValidateParameters(params map[string]any, schema map[string]any) error {
	if schema == nil {
		return nil
	}
	return validateObject("", params, schema)
}

func validateObject(path string, obj map[string]any, schema map[string]any) error {
	for _, name := range RequiredFields(schema) {
		if _, ok := obj[name]; !ok {
			return &ValidationError{Field: join(path, name), Message: "required field is missing"}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range obj {
		prop, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(join(path, name), value, prop); err != nil {
			return err
		}
	}

	return nil
}

func validateValue(path string, value any, schema map[string]any) error {
	// JSON null is accepted for any type; optional fields are often sent as null.
	if value == nil {
		return nil
	}

	expected, _ := schema["type"].(string)
	if !isValidType(value, expected) {
		return &ValidationError{
			Field:   path,
			Value:   value,
			Message: fmt.Sprintf("expected type %s, got %T", expected, value),
		}
	}

	if enum, ok := schema["enum"].([]any); ok && !containsValue(enum, value) {
		return &ValidationError{
			Field:   path,
			Value:   value,
			Message: fmt.Sprintf("value %v is not one of %v", value, enum),
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return validateObject(path, v, schema)
	case []any:
		items, ok := schema["items"].(map[string]any)
		if !ok {
			return nil
		}
		for i, item := range v {
			if err := validateValue(path+"["+strconv.Itoa(i)+"]", item, items); err != nil {
				return err
			}
		}
	}

	return nil
}

// RequiredFields returns the "required" list of a schema, accepting both the
// []string form built in Go and the []any form produced by JSON decoding.
func RequiredFields(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func containsValue(enum []any, value any) bool {
	for _, e := range enum {
		if fmt.Sprint(e) == fmt.Sprint(value) {
			return true
		}
	}
	return false
}

// isValidType checks value against a JSON schema type. Arguments come from
// encoding/json, so numbers are float64 but Go-built maps may hold ints.
func isValidType(value any, expected string) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == math.Trunc(v) && !math.IsInf(v, 0)
		}
		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
