package model

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/goliatone/go-dynform/pkg/schema"
)

var (
	// ErrControlNotFound is returned for keys absent from the path map.
	ErrControlNotFound = errors.New("model: control not found")
	// ErrPathNotFound is returned when a dot path does not address a node.
	ErrPathNotFound = errors.New("model: path not found")
)

// FormModel is the compiled, addressable form. It is created once per form
// instance and mutated in place as values and rows change.
type FormModel struct {
	schema schema.FormSchema
	root   *Group
	paths  PathMap
	nodes  map[string]Node
	rev    *revision
	logger *slog.Logger

	sections []*Section
}

// Section is a keyless group with visibleWhen, disabledWhen or hidden set.
// It has no node of its own; its rules gate the nodes placed inside it.
type Section struct {
	def   schema.ControlDefinition
	paths []string
}

// Definition returns the section's control definition.
func (s *Section) Definition() schema.ControlDefinition { return s.def }

// Paths lists the absolute paths of the nodes declared inside the section.
func (s *Section) Paths() []string { return append([]string(nil), s.paths...) }

// Sections returns the gated keyless groups in schema order.
func (m *FormModel) Sections() []*Section {
	return append([]*Section(nil), m.sections...)
}

// Schema returns the resolved schema the model was compiled from.
func (m *FormModel) Schema() schema.FormSchema { return m.schema }

// Root returns the root group.
func (m *FormModel) Root() *Group { return m.root }

// PathMap returns a copy of the key to path mapping.
func (m *FormModel) PathMap() PathMap {
	out := make(PathMap, len(m.paths))
	for k, v := range m.paths {
		out[k] = v
	}
	return out
}

// Revision changes on every mutation of the model.
func (m *FormModel) Revision() uint64 { return m.rev.load() }

// GetControl returns the node registered under key.
func (m *FormModel) GetControl(key string) (Node, bool) {
	n, ok := m.nodes[key]
	return n, ok
}

// GetDataPath returns the absolute path registered under key.
func (m *FormModel) GetDataPath(key string) (string, bool) {
	p, ok := m.paths[key]
	return p, ok
}

// Control is GetControl for callers that prefer an error.
func (m *FormModel) Control(key string) (Node, error) {
	n, ok := m.nodes[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrControlNotFound, key)
	}
	return n, nil
}

// Field returns the field registered under key.
func (m *FormModel) Field(key string) (*Field, bool) {
	f, ok := m.nodes[key].(*Field)
	return f, ok
}

// RowSet returns the row set registered under key.
func (m *FormModel) RowSet(key string) (*RowSet, bool) {
	r, ok := m.nodes[key].(*RowSet)
	return r, ok
}

// Value reads the whole model into a fresh nested map.
func (m *FormModel) Value() map[string]any {
	return m.root.Values()
}

// Node resolves a dot path; numeric segments index into row sets.
func (m *FormModel) Node(path string) (Node, bool) {
	if path == "" {
		return m.root, true
	}
	var current Node = m.root
	for _, seg := range strings.Split(path, ".") {
		switch typed := current.(type) {
		case *Group:
			child, ok := typed.children[seg]
			if !ok {
				return nil, false
			}
			current = child
		case *RowSet:
			idx, err := strconv.Atoi(seg)
			if err != nil {
				return nil, false
			}
			row, ok := typed.Row(idx)
			if !ok {
				return nil, false
			}
			current = row
		default:
			return nil, false
		}
	}
	return current, true
}

// Get returns the value at path.
func (m *FormModel) Get(path string) (any, bool) {
	n, ok := m.Node(path)
	if !ok {
		return nil, false
	}
	return n.Value(), true
}

// Set writes value at path. Groups accept maps and row sets accept slices,
// both applied with PatchForm semantics.
func (m *FormModel) Set(path string, value any) error {
	n, ok := m.Node(path)
	if !ok {
		return fmt.Errorf("%w: %q", ErrPathNotFound, path)
	}
	switch typed := n.(type) {
	case *Field:
		typed.SetValue(value)
	case *Group:
		data, ok := asMap(value)
		if !ok {
			return fmt.Errorf("model: %q is a group, got %T", path, value)
		}
		rebuildRows(typed, data)
		patchGroup(typed, data)
	case *RowSet:
		items, ok := asSlice(value)
		if !ok {
			return fmt.Errorf("model: %q is a table, got %T", path, value)
		}
		rebuildRowSet(typed, items)
		patchRowSet(typed, items)
	}
	return nil
}

// PatchForm loads data into the model. Row sets are rebuilt to match the
// incoming arrays first so row fields exist before scalar values are
// patched. Keys without a matching node are ignored.
func (m *FormModel) PatchForm(data map[string]any) {
	if len(data) == 0 {
		return
	}
	rebuildRows(m.root, data)
	patchGroup(m.root, data)
}

func rebuildRows(g *Group, data map[string]any) {
	for key, child := range g.children {
		raw, present := data[key]
		if !present {
			continue
		}
		switch typed := child.(type) {
		case *RowSet:
			if items, ok := asSlice(raw); ok {
				rebuildRowSet(typed, items)
			}
		case *Group:
			if nested, ok := asMap(raw); ok {
				rebuildRows(typed, nested)
			}
		}
	}
}

func rebuildRowSet(r *RowSet, items []any) {
	r.Clear()
	for _, item := range items {
		row := r.AddRow()
		if nested, ok := asMap(item); ok {
			rebuildRows(row, nested)
		}
	}
}

func patchGroup(g *Group, data map[string]any) {
	for key, raw := range data {
		child, ok := g.children[key]
		if !ok {
			continue
		}
		switch typed := child.(type) {
		case *Field:
			typed.SetValue(raw)
		case *Group:
			if nested, ok := asMap(raw); ok {
				patchGroup(typed, nested)
			}
		case *RowSet:
			if items, ok := asSlice(raw); ok {
				patchRowSet(typed, items)
			}
		}
	}
}

func patchRowSet(r *RowSet, items []any) {
	for i, item := range items {
		row, ok := r.Row(i)
		if !ok {
			return
		}
		if nested, ok := asMap(item); ok {
			patchGroup(row, nested)
		}
	}
}

// Validate returns the failing rules per field path. An empty map means the
// form is valid.
func (m *FormModel) Validate() map[string][]string {
	out := make(map[string][]string)
	for _, f := range m.root.Fields() {
		if errs := f.Errors(); len(errs) > 0 {
			out[f.Path()] = errs
		}
	}
	return out
}

// Valid reports whether every enabled field passes validation.
func (m *FormModel) Valid() bool {
	for _, f := range m.root.Fields() {
		if !f.Valid() {
			return false
		}
	}
	return true
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func asSlice(v any) ([]any, bool) {
	switch typed := v.(type) {
	case []any:
		return typed, true
	case []map[string]any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = item
		}
		return out, true
	default:
		return nil, false
	}
}
