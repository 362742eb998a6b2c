package tool

import (
	"encoding/json"
	"fmt"
)

// ValidateInput checks args against the tool's JSON schema: required
// properties must be present and primitive types must match. A validation
// failure is recorded as a failed step, never surfaced as a crash.
func ValidateInput(t Tool, args json.RawMessage) error {
	var schemaDef struct {
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(t.Parameters(), &schemaDef); err != nil {
		return fmt.Errorf("tool %s: bad parameter schema: %w", t.ID(), err)
	}

	var input map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &input); err != nil {
			return fmt.Errorf("arguments are not a JSON object: %w", err)
		}
	}

	for _, name := range schemaDef.Required {
		if _, ok := input[name]; !ok {
			return fmt.Errorf("missing required argument %q", name)
		}
	}

	for name, value := range input {
		prop, ok := schemaDef.Properties[name]
		if !ok || value == nil {
			continue
		}
		if err := checkType(name, prop.Type, value); err != nil {
			return err
		}
	}

	return nil
}

func checkType(name, want string, value any) error {
	ok := true
	switch want {
	case "string":
		_, ok = value.(string)
	case "number", "integer":
		// encoding/json decodes all numbers as float64.
		_, ok = value.(float64)
	case "boolean":
		_, ok = value.(bool)
	case "array":
		_, ok = value.([]any)
	case "object":
		_, ok = value.(map[string]any)
	}
	if !ok {
		return fmt.Errorf("argument %q: expected %s, got %T", name, want, value)
	}
	return nil
}
