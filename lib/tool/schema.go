// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tool

import "encoding/json"

// ObjectSchema builds the common "object with these properties" JSON
// Schema shape used by tool definitions. required lists the property
// names that must be present.
func ObjectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// StringProperty builds a string property schema with a description.
func StringProperty(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// ValidateArguments checks arguments against the subset of JSON Schema
// the tool definitions use: required property presence and primitive
// type agreement. Full schema evaluation is left to clients; this
// check exists so a missing required field fails with InvalidInput
// before any side effect, rather than surfacing as a confusing
// downstream error.
//
// schema must be an object schema (or nil, which accepts anything).
func ValidateArguments(schema map[string]any, arguments map[string]any) *Error {
	if schema == nil {
		return nil
	}

	if required, ok := schema["required"].([]string); ok {
		for _, name := range required {
			if _, present := arguments[name]; !present {
				return InvalidInput("missing required argument %q", name)
			}
		}
	} else if required, ok := schema["required"].([]any); ok {
		// Schemas loaded from configuration files decode required
		// as []any rather than []string.
		for _, entry := range required {
			name, ok := entry.(string)
			if !ok {
				continue
			}
			if _, present := arguments[name]; !present {
				return InvalidInput("missing required argument %q", name)
			}
		}
	}

	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return nil
	}
	for name, value := range arguments {
		propertySchema, ok := properties[name].(map[string]any)
		if !ok {
			continue
		}
		declaredType, ok := propertySchema["type"].(string)
		if !ok {
			continue
		}
		if !typeMatches(declaredType, value) {
			return InvalidInput("argument %q: expected %s", name, declaredType)
		}
	}
	return nil
}

// typeMatches reports whether a decoded JSON value conforms to a JSON
// Schema primitive type name.
func typeMatches(declaredType string, value any) bool {
	switch declaredType {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		return isJSONNumber(value)
	case "integer":
		switch v := value.(type) {
		case float64:
			return v == float64(int64(v))
		case json.Number:
			_, err := v.Int64()
			return err == nil
		case int, int64:
			return true
		default:
			return false
		}
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "null":
		return value == nil
	default:
		// Unknown type names (unions, $refs) are not checked here.
		return true
	}
}

func isJSONNumber(value any) bool {
	switch value.(type) {
	case float64, json.Number, int, int64:
		return true
	default:
		return false
	}
}
