package model

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-dynform/pkg/schema"
)

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithLogger routes developer warnings emitted while compiling models.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Generator compiles resolved schemas into form models.
type Generator struct {
	logger *slog.Logger
}

// NewGenerator constructs a generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// ToModel walks a resolved schema and produces the addressable model with its
// path map. String references must have been resolved beforehand.
func (g *Generator) ToModel(form schema.FormSchema) (*FormModel, error) {
	rev := &revision{}
	m := &FormModel{
		schema: form,
		paths:  make(PathMap),
		nodes:  make(map[string]Node),
		rev:    rev,
		logger: g.logger,
	}
	m.root = newGroup("", "", schema.ControlDefinition{Type: schema.TypeGroup}, rev)

	b := &builder{
		logger: g.logger,
		rev:    rev,
		root:   m.root,
		paths:  m.paths,
		nodes:  m.nodes,
		gated:  &m.sections,
	}
	if err := b.build(form.Sections, ""); err != nil {
		return nil, err
	}
	return m, nil
}

// builder places controls into a group tree. Row builders use a row group as
// root and a prefix so nodes still carry absolute paths.
type builder struct {
	logger *slog.Logger
	rev    *revision
	root   *Group
	prefix string
	paths  PathMap
	nodes  map[string]Node

	// gated collects keyless groups carrying rules; open holds the ones
	// currently being built.
	gated *[]*Section
	open  []*Section
}

func (b *builder) build(controls []schema.ControlConfig, parentPath string) error {
	for _, entry := range controls {
		if entry.IsRef() {
			return fmt.Errorf("model: unresolved control reference %q", entry.Ref)
		}
		if err := b.place(*entry.Control, parentPath); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) place(def schema.ControlDefinition, parentPath string) error {
	key := strings.TrimSpace(def.Key)
	kind := def.NormalizedType().Kind()

	if key == "" {
		if kind == schema.KindGroup {
			// Keyless groups are visual only; children join the parent scope.
			if b.gated == nil || !def.HasRules() {
				return b.build(def.Controls, parentPath)
			}
			section := &Section{def: def}
			*b.gated = append(*b.gated, section)
			b.open = append(b.open, section)
			err := b.build(def.Controls, parentPath)
			b.open = b.open[:len(b.open)-1]
			return err
		}
		b.logger.Debug("model: skipping control without key", "type", string(def.Type), "label", def.Label)
		return nil
	}

	rel := joinPath(parentPath, key)
	if dp := strings.TrimSpace(def.DataPath); dp != "" {
		rel = dp
	}
	segments, ok := splitPath(rel)
	if !ok {
		b.logger.Warn("model: invalid data path", "key", key, "path", rel)
		return nil
	}

	switch kind {
	case schema.KindGroup:
		group, placed := b.placeGroup(segments, key, def)
		if !placed {
			b.logger.Warn("model: path conflict, skipping group", "key", key, "path", rel)
			return nil
		}
		b.register(key, rel, group)
		return b.build(def.Controls, rel)
	case schema.KindRowSet:
		rows := b.newRowSet(key, joinPath(b.prefix, rel), def)
		if !b.insert(segments, rows) {
			b.logger.Warn("model: path conflict, skipping table", "key", key, "path", rel)
			return nil
		}
		b.register(key, rel, rows)
	default:
		field := newField(key, joinPath(b.prefix, rel), def, b.rev)
		if !b.insert(segments, field) {
			b.logger.Warn("model: path conflict, skipping field", "key", key, "path", rel)
			return nil
		}
		b.register(key, rel, field)
	}
	return nil
}

// register indexes n under key. The node itself is always part of the tree;
// only the first control with a given key is addressable by key.
func (b *builder) register(key, rel string, n Node) {
	path := joinPath(b.prefix, rel)
	for _, section := range b.open {
		section.paths = append(section.paths, path)
	}
	if existing, dup := b.paths[key]; dup {
		b.logger.Warn("model: duplicate control key, keeping first", "key", key, "path", existing, "duplicate", path)
		return
	}
	b.paths[key] = path
	b.nodes[key] = n
}

// parent walks to the group that should hold the last segment, creating
// implicit groups along the way.
func (b *builder) parent(segments []string) (*Group, bool) {
	g := b.root
	for i, seg := range segments[:len(segments)-1] {
		child, ok := g.children[seg]
		if !ok {
			implicit := newGroup(seg, joinPath(b.prefix, strings.Join(segments[:i+1], ".")), schema.ControlDefinition{}, b.rev)
			implicit.implicit = true
			g.add(seg, implicit)
			g = implicit
			continue
		}
		next, isGroup := child.(*Group)
		if !isGroup {
			return nil, false
		}
		g = next
	}
	return g, true
}

func (b *builder) insert(segments []string, n Node) bool {
	g, ok := b.parent(segments)
	if !ok {
		return false
	}
	last := segments[len(segments)-1]
	if _, taken := g.children[last]; taken {
		return false
	}
	g.add(last, n)
	return true
}

// placeGroup inserts a keyed group, adopting an implicit group already created
// for a descendant's dataPath.
func (b *builder) placeGroup(segments []string, key string, def schema.ControlDefinition) (*Group, bool) {
	g, ok := b.parent(segments)
	if !ok {
		return nil, false
	}
	last := segments[len(segments)-1]
	if existing, taken := g.children[last]; taken {
		group, isGroup := existing.(*Group)
		if !isGroup || !group.implicit {
			return nil, false
		}
		group.key = key
		group.def = def
		group.implicit = false
		return group, true
	}
	group := newGroup(key, joinPath(b.prefix, strings.Join(segments, ".")), def, b.rev)
	g.add(last, group)
	return group, true
}

func (b *builder) newRowSet(key, path string, def schema.ControlDefinition) *RowSet {
	columns := def.Children()
	rows := &RowSet{
		key:     key,
		path:    path,
		def:     def,
		rev:     b.rev,
		columns: columns,
	}
	logger := b.logger
	rows.newRow = func(rowPath string) *Group {
		return buildRow(logger, b.rev, rowPath, key, def)
	}
	return rows
}

// buildRow instantiates one row group from the table's column schema.
func buildRow(logger *slog.Logger, rev *revision, rowPath, tableKey string, def schema.ControlDefinition) *Group {
	row := newGroup("", rowPath, schema.ControlDefinition{Type: schema.TypeGroup}, rev)
	if len(def.Controls) == 0 {
		logger.Warn("model: table has no column schema, row will be empty", "table", tableKey)
		return row
	}
	rb := &builder{
		logger: logger,
		rev:    rev,
		root:   row,
		prefix: rowPath,
		paths:  make(PathMap),
		nodes:  make(map[string]Node),
	}
	if err := rb.build(def.Controls, ""); err != nil {
		logger.Warn("model: table row incomplete", "table", tableKey, "error", err)
	}
	return row
}

func splitPath(path string) ([]string, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, false
		}
	}
	return segments, true
}
