package model

import (
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/goliatone/go-dynform/pkg/schema"
)

// Node is one addressable element of a compiled form: a *Group, a *RowSet or
// a *Field. The set of implementations is closed.
type Node interface {
	Key() string
	// Path is the absolute dot path of the node in the value store.
	Path() string
	Kind() schema.NodeKind
	Definition() schema.ControlDefinition
	Value() any
	node()
}

// revision is shared by every node of a model and bumped on each mutation so
// derived views can detect staleness cheaply.
type revision struct {
	n atomic.Uint64
}

func (r *revision) bump() {
	if r != nil {
		r.n.Add(1)
	}
}

func (r *revision) load() uint64 {
	if r == nil {
		return 0
	}
	return r.n.Load()
}

// Group is an ordered mapping of child nodes. Groups created only to host a
// dataPath segment carry an empty definition.
type Group struct {
	key      string
	path     string
	def      schema.ControlDefinition
	implicit bool
	order    []string
	children map[string]Node
	rev      *revision
}

func newGroup(key, path string, def schema.ControlDefinition, rev *revision) *Group {
	return &Group{
		key:      key,
		path:     path,
		def:      def,
		children: make(map[string]Node),
		rev:      rev,
	}
}

func (g *Group) node() {}

func (g *Group) Key() string                          { return g.key }
func (g *Group) Path() string                         { return g.path }
func (g *Group) Kind() schema.NodeKind                { return schema.KindGroup }
func (g *Group) Definition() schema.ControlDefinition { return g.def }

// Value returns the group's values as a fresh map.
func (g *Group) Value() any {
	return g.Values()
}

// Values is the typed form of Value.
func (g *Group) Values() map[string]any {
	out := make(map[string]any, len(g.order))
	for _, key := range g.order {
		out[key] = g.children[key].Value()
	}
	return out
}

// Child returns the direct child registered under key.
func (g *Group) Child(key string) (Node, bool) {
	child, ok := g.children[key]
	return child, ok
}

// Children returns the direct children in insertion order.
func (g *Group) Children() []Node {
	out := make([]Node, 0, len(g.order))
	for _, key := range g.order {
		out = append(out, g.children[key])
	}
	return out
}

// Keys lists direct child keys in insertion order.
func (g *Group) Keys() []string {
	return append([]string(nil), g.order...)
}

// Fields returns every field below the group, depth first.
func (g *Group) Fields() []*Field {
	var out []*Field
	walk(g, func(n Node) {
		if f, ok := n.(*Field); ok {
			out = append(out, f)
		}
	})
	return out
}

func (g *Group) add(key string, child Node) {
	if _, exists := g.children[key]; !exists {
		g.order = append(g.order, key)
	}
	g.children[key] = child
}

// RowSet is the dynamically sized node backing a table control. Each row is
// a Group instantiated from the column schema.
type RowSet struct {
	key     string
	path    string
	def     schema.ControlDefinition
	rows    []*Group
	rev     *revision
	newRow  func(path string) *Group
	columns []schema.ControlDefinition
}

func (r *RowSet) node() {}

func (r *RowSet) Key() string                          { return r.key }
func (r *RowSet) Path() string                         { return r.path }
func (r *RowSet) Kind() schema.NodeKind                { return schema.KindRowSet }
func (r *RowSet) Definition() schema.ControlDefinition { return r.def }

// Value returns the rows as a slice of value maps.
func (r *RowSet) Value() any {
	out := make([]any, len(r.rows))
	for i, row := range r.rows {
		out[i] = row.Values()
	}
	return out
}

// Columns returns the column definitions each row is built from.
func (r *RowSet) Columns() []schema.ControlDefinition {
	return append([]schema.ControlDefinition(nil), r.columns...)
}

// Rows returns the row groups in order.
func (r *RowSet) Rows() []*Group {
	return append([]*Group(nil), r.rows...)
}

// Row returns the row at index i.
func (r *RowSet) Row(i int) (*Group, bool) {
	if i < 0 || i >= len(r.rows) {
		return nil, false
	}
	return r.rows[i], true
}

// Len returns the number of rows.
func (r *RowSet) Len() int {
	return len(r.rows)
}

// AddRow appends a fresh row built from the column schema.
func (r *RowSet) AddRow() *Group {
	row := r.newRow(joinPath(r.path, strconv.Itoa(len(r.rows))))
	r.rows = append(r.rows, row)
	r.rev.bump()
	return row
}

// RemoveRow deletes the row at index i and renumbers the rows after it.
func (r *RowSet) RemoveRow(i int) bool {
	if i < 0 || i >= len(r.rows) {
		return false
	}
	r.rows = append(r.rows[:i], r.rows[i+1:]...)
	for idx := i; idx < len(r.rows); idx++ {
		rebase(r.rows[idx], joinPath(r.path, strconv.Itoa(idx)))
	}
	r.rev.bump()
	return true
}

// Clear removes every row.
func (r *RowSet) Clear() {
	r.rows = nil
	r.rev.bump()
}

// Version changes whenever any value in the owning model changes.
func (r *RowSet) Version() uint64 {
	return r.rev.load()
}

// Field is a scalar leaf with its validation state.
type Field struct {
	key             string
	path            string
	def             schema.ControlDefinition
	value           any
	rules           []Rule
	disabled        bool
	dynamicRequired bool
	touched         bool
	rev             *revision
}

func newField(key, path string, def schema.ControlDefinition, rev *revision) *Field {
	f := &Field{
		key:   key,
		path:  path,
		def:   def,
		value: initialValue(def),
		rules: DeriveRules(def),
		rev:   rev,
	}
	return f
}

func initialValue(def schema.ControlDefinition) any {
	if def.NormalizedType() == schema.TypeCheckbox {
		return false
	}
	return ""
}

func (f *Field) node() {}

func (f *Field) Key() string                          { return f.key }
func (f *Field) Path() string                         { return f.path }
func (f *Field) Kind() schema.NodeKind                { return schema.KindField }
func (f *Field) Definition() schema.ControlDefinition { return f.def }
func (f *Field) Value() any                           { return f.value }

// SetValue stores v as the field value.
func (f *Field) SetValue(v any) {
	f.value = v
	f.rev.bump()
}

// Disabled reports whether the field is excluded from validation and input.
func (f *Field) Disabled() bool { return f.disabled }

// SetDisabled toggles the disabled state without changing the value.
func (f *Field) SetDisabled(disabled bool) {
	if f.disabled != disabled {
		f.disabled = disabled
		f.rev.bump()
	}
}

// Touched reports whether the user interacted with the field.
func (f *Field) Touched() bool { return f.touched }

// MarkTouched flags the field as interacted with.
func (f *Field) MarkTouched() { f.touched = true }

// SetDynamicRequired adds or removes the required rule driven by requiredWhen.
func (f *Field) SetDynamicRequired(required bool) { f.dynamicRequired = required }

// Required reports whether a static or dynamic required rule applies.
func (f *Field) Required() bool {
	if f.dynamicRequired {
		return true
	}
	for _, rule := range f.rules {
		if rule.Name == RuleRequired {
			return true
		}
	}
	return false
}

// Rules returns the derived validation rules.
func (f *Field) Rules() []Rule {
	return append([]Rule(nil), f.rules...)
}

func walk(n Node, fn func(Node)) {
	fn(n)
	switch typed := n.(type) {
	case *Group:
		for _, key := range typed.order {
			walk(typed.children[key], fn)
		}
	case *RowSet:
		for _, row := range typed.rows {
			walk(row, fn)
		}
	}
}

// rebase rewrites the absolute paths of a row subtree after renumbering.
func rebase(row *Group, path string) {
	old := row.path
	walk(row, func(n Node) {
		switch typed := n.(type) {
		case *Group:
			typed.path = path + typed.path[len(old):]
		case *RowSet:
			typed.path = path + typed.path[len(old):]
		case *Field:
			typed.path = path + typed.path[len(old):]
		}
	})
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	if segment == "" {
		return prefix
	}
	return prefix + "." + segment
}

// PathMap maps control keys to absolute dot paths.
type PathMap map[string]string

// Keys returns the registered keys sorted.
func (p PathMap) Keys() []string {
	keys := make([]string, 0, len(p))
	for key := range p {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
