package resolver

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-dynform/pkg/library"
	"github.com/goliatone/go-dynform/pkg/schema"
)

const defaultMaxDepth = 64

// Option customises a Resolver.
type Option func(*Resolver)

// WithLogger routes developer warnings (unknown references, unknown types).
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMaxDepth caps control nesting depth. Values <= 0 keep the default.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// Resolver compiles raw schemas into fully merged control trees by looking up
// string references and inline overrides in a control library.
type Resolver struct {
	lib      *library.Library
	logger   *slog.Logger
	maxDepth int
}

// New constructs a resolver over lib. A nil library resolves every reference
// to a fallback text field.
func New(lib *library.Library, opts ...Option) *Resolver {
	r := &Resolver{
		lib:      lib,
		logger:   slog.Default(),
		maxDepth: defaultMaxDepth,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve replaces every reference in form with its merged definition. The
// only failure is a *SchemaCycleError; unknown references degrade to fallback
// fields. Resolving an already-resolved schema returns an equal schema.
func (r *Resolver) Resolve(form schema.FormSchema) (schema.FormSchema, error) {
	out := form
	out.Sections = nil
	if len(form.Sections) == 0 {
		return out, nil
	}
	state := &resolveState{stack: make([]string, 0, 4), inStack: make(map[string]struct{})}
	out.Sections = make([]schema.ControlConfig, 0, len(form.Sections))
	for _, section := range form.Sections {
		def, err := r.resolveControl(section, state, 0)
		if err != nil {
			return schema.FormSchema{}, err
		}
		out.Sections = append(out.Sections, schema.Inline(def))
	}
	return out, nil
}

// ResolveControl resolves a single entry outside of a schema.
func (r *Resolver) ResolveControl(entry schema.ControlConfig) (schema.ControlDefinition, error) {
	state := &resolveState{inStack: make(map[string]struct{})}
	return r.resolveControl(entry, state, 0)
}

func (r *Resolver) resolveControl(entry schema.ControlConfig, state *resolveState, depth int) (schema.ControlDefinition, error) {
	if depth >= r.maxDepth {
		return schema.ControlDefinition{}, &SchemaCycleError{Chain: state.chain(""), Limit: r.maxDepth}
	}

	if entry.IsRef() {
		ref := strings.TrimSpace(entry.Ref)
		base, ok := r.lib.Lookup(ref)
		if !ok {
			r.logger.Warn("resolver: unknown control reference", "ref", ref)
			return fallback(ref), nil
		}
		return r.expand(ref, base, state, depth)
	}

	inline := *entry.Control
	libKey := r.libraryKey(inline)
	if libKey == "" {
		return r.expand("", inline.Clone(), state, depth)
	}

	base, _ := r.lib.Lookup(libKey)
	merged, err := merge(base, inline, entry.Declared)
	if err != nil {
		return schema.ControlDefinition{}, fmt.Errorf("resolver: merge %q: %w", libKey, err)
	}
	return r.expand(libKey, merged, state, depth)
}

// libraryKey returns the library entry an inline control overrides, matched
// on key first and code second.
func (r *Resolver) libraryKey(def schema.ControlDefinition) string {
	if def.Key != "" && r.lib.Has(def.Key) {
		return def.Key
	}
	if def.Code != "" && r.lib.Has(def.Code) {
		return def.Code
	}
	return ""
}

func (r *Resolver) expand(libKey string, def schema.ControlDefinition, state *resolveState, depth int) (schema.ControlDefinition, error) {
	if libKey != "" {
		if state.contains(libKey) {
			return schema.ControlDefinition{}, &SchemaCycleError{Chain: state.chain(libKey)}
		}
		state.push(libKey)
		defer state.pop(libKey)
	}

	r.normalize(&def)

	if len(def.Controls) == 0 {
		def.Controls = nil
		return def, nil
	}
	children := make([]schema.ControlConfig, 0, len(def.Controls))
	for _, child := range def.Controls {
		resolved, err := r.resolveControl(child, state, depth+1)
		if err != nil {
			return schema.ControlDefinition{}, err
		}
		children = append(children, schema.Inline(resolved))
	}
	def.Controls = children
	return def, nil
}

func (r *Resolver) normalize(def *schema.ControlDefinition) {
	if !def.Type.Known() {
		r.logger.Warn("resolver: unknown control type, treating as text", "key", def.Key, "type", string(def.Type))
		def.Type = schema.TypeText
	} else {
		def.Type = def.Type.Normalize()
	}

	if def.DomainConfig != nil {
		if def.CategoryCode == "" {
			def.CategoryCode = def.DomainConfig.CategoryCode
		}
		if def.DependentOn == "" {
			def.DependentOn = def.DomainConfig.DependentOn
		}
		def.DomainConfig = nil
	}
}

// merge overlays the inline fields onto the library base, one top-level field
// at a time. A declared field whose value is empty still wins and clears the
// library value. Child lists are never dropped: inline children replace
// library children only when the inline object declares its own.
func merge(base, inline schema.ControlDefinition, declared []string) (schema.ControlDefinition, error) {
	fields, err := base.Fields()
	if err != nil {
		return schema.ControlDefinition{}, err
	}
	overrides, err := inline.Fields()
	if err != nil {
		return schema.ControlDefinition{}, err
	}
	for _, key := range declared {
		if _, set := overrides[key]; !set && key != "controls" {
			delete(fields, key)
		}
	}
	for key, value := range overrides {
		fields[key] = value
	}
	return schema.FromFields(fields)
}

func fallback(ref string) schema.ControlDefinition {
	return schema.ControlDefinition{
		Key:   ref,
		Type:  schema.TypeText,
		Label: "[" + ref + "]",
	}
}
