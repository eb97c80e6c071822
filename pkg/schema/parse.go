package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Parse decodes a form schema document. JSON is tried first; YAML documents
// are accepted and routed through the JSON decoder so both notations share
// the same ControlConfig handling.
func Parse(data []byte) (FormSchema, error) {
	var out FormSchema
	if err := Decode(data, &out); err != nil {
		return FormSchema{}, err
	}
	return out, nil
}

// Decode unmarshals JSON or YAML into target.
func Decode(data []byte, target any) error {
	if len(strings.TrimSpace(string(data))) == 0 {
		return fmt.Errorf("schema: document is empty")
	}

	jsonErr := json.Unmarshal(data, target)
	if jsonErr == nil {
		return nil
	}

	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return fmt.Errorf("schema: invalid JSON or YAML: %w", jsonErr)
	}
	converted, err := json.Marshal(normalizeYAML(generic))
	if err != nil {
		return fmt.Errorf("schema: convert YAML: %w", err)
	}
	if err := json.Unmarshal(converted, target); err != nil {
		return fmt.Errorf("schema: decode: %w", err)
	}
	return nil
}

// normalizeYAML converts map[any]any nodes that older YAML payloads can
// produce into JSON-compatible maps.
func normalizeYAML(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = normalizeYAML(v)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = normalizeYAML(v)
		}
		return out
	default:
		return typed
	}
}

// Clone returns a deep copy of the definition.
func (d ControlDefinition) Clone() ControlDefinition {
	raw, err := json.Marshal(d)
	if err != nil {
		return d
	}
	var out ControlDefinition
	if err := json.Unmarshal(raw, &out); err != nil {
		return d
	}
	return out
}

// Fields returns the definition as a JSON object of its present fields.
func (d ControlDefinition) Fields() (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("schema: encode control %q: %w", d.Key, err)
	}
	out := make(map[string]any)
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("schema: decode control %q: %w", d.Key, err)
	}
	return out, nil
}

// FromFields rebuilds a definition from a field map produced by Fields.
func FromFields(fields map[string]any) (ControlDefinition, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return ControlDefinition{}, fmt.Errorf("schema: encode fields: %w", err)
	}
	var out ControlDefinition
	if err := json.Unmarshal(raw, &out); err != nil {
		return ControlDefinition{}, fmt.Errorf("schema: decode fields: %w", err)
	}
	return out, nil
}
