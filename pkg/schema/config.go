package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ControlConfig is either a bare library reference (`"employee.email"`) or an
// inline control definition. Exactly one of Ref or Control is set.
type ControlConfig struct {
	Ref     string
	Control *ControlDefinition
	// Declared lists the JSON fields written in a decoded inline object,
	// including those set to an empty value. It is nil for entries built in
	// code.
	Declared []string
}

// Ref builds a reference entry.
func Ref(key string) ControlConfig {
	return ControlConfig{Ref: key}
}

// Inline wraps a definition as a config entry.
func Inline(def ControlDefinition) ControlConfig {
	clone := def
	return ControlConfig{Control: &clone}
}

// IsRef reports whether the entry is an unresolved string reference.
func (c ControlConfig) IsRef() bool {
	return c.Control == nil
}

// UnmarshalJSON accepts a JSON string or object.
func (c *ControlConfig) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return errors.New("schema: control entry is null")
	}
	switch trimmed[0] {
	case '"':
		var ref string
		if err := json.Unmarshal(trimmed, &ref); err != nil {
			return fmt.Errorf("schema: control reference: %w", err)
		}
		*c = ControlConfig{Ref: ref}
		return nil
	case '{':
		var def ControlDefinition
		if err := json.Unmarshal(trimmed, &def); err != nil {
			return fmt.Errorf("schema: control definition: %w", err)
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return fmt.Errorf("schema: control definition: %w", err)
		}
		declared := make([]string, 0, len(raw))
		for name := range raw {
			declared = append(declared, name)
		}
		sort.Strings(declared)
		*c = ControlConfig{Control: &def, Declared: declared}
		return nil
	default:
		return fmt.Errorf("schema: control entry must be a string or object, got %s", string(trimmed[:1]))
	}
}

// IsDeclared reports whether the inline object named field explicitly.
func (c ControlConfig) IsDeclared(field string) bool {
	i := sort.SearchStrings(c.Declared, field)
	return i < len(c.Declared) && c.Declared[i] == field
}

// MarshalJSON writes the entry back in the form it was declared.
func (c ControlConfig) MarshalJSON() ([]byte, error) {
	if c.Control == nil {
		return json.Marshal(c.Ref)
	}
	return json.Marshal(c.Control)
}
