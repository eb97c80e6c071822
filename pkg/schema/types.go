package schema

import "strings"

// ControlType enumerates the control kinds a schema may declare. Documents
// may spell types in any case; Normalize folds them to the canonical form.
type ControlType string

const (
	TypeText     ControlType = "text"
	TypeNumber   ControlType = "number"
	TypeCheckbox ControlType = "checkbox"
	TypeSelect   ControlType = "select"
	TypeDate     ControlType = "date"
	TypeTree     ControlType = "tree"
	TypeGroup    ControlType = "group"
	TypeTable    ControlType = "table"
)

var knownTypes = map[ControlType]struct{}{
	TypeText:     {},
	TypeNumber:   {},
	TypeCheckbox: {},
	TypeSelect:   {},
	TypeDate:     {},
	TypeTree:     {},
	TypeGroup:    {},
	TypeTable:    {},
}

// Normalize lower-cases the type and defaults an empty value to text.
func (t ControlType) Normalize() ControlType {
	trimmed := strings.ToLower(strings.TrimSpace(string(t)))
	if trimmed == "" {
		return TypeText
	}
	return ControlType(trimmed)
}

// Known reports whether the normalized type is one of the supported kinds.
func (t ControlType) Known() bool {
	_, ok := knownTypes[t.Normalize()]
	return ok
}

// NodeKind is the structural variant a control compiles into.
type NodeKind int

const (
	KindField NodeKind = iota
	KindGroup
	KindRowSet
)

func (k NodeKind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindRowSet:
		return "rowset"
	default:
		return "field"
	}
}

// Kind maps a control type onto its structural variant. Every type other than
// group and table compiles into a scalar field.
func (t ControlType) Kind() NodeKind {
	switch t.Normalize() {
	case TypeGroup:
		return KindGroup
	case TypeTable:
		return KindRowSet
	default:
		return KindField
	}
}

// Option is a static `{label, value}` entry for select and tree controls.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// DomainConfig is the legacy nesting for cascading data sources. The resolver
// folds it onto ControlDefinition.CategoryCode and DependentOn.
type DomainConfig struct {
	CategoryCode string `json:"categoryCode,omitempty"`
	DependentOn  string `json:"dependentOn,omitempty"`
}

// Pagination configures table paging.
type Pagination struct {
	Enabled  bool `json:"enabled"`
	PageSize int  `json:"pageSize,omitempty"`
}

// ActionDefinition describes a row or header action button on a table.
type ActionDefinition struct {
	ID          string `json:"id"`
	Label       string `json:"label,omitempty"`
	Icon        string `json:"icon,omitempty"`
	CSSClass    string `json:"cssClass,omitempty"`
	VisibleWhen string `json:"visibleWhen,omitempty"`
	AriaLabel   string `json:"ariaLabel,omitempty"`
}

// ControlDefinition describes one form field, group, or table/tree. Optional
// scalars whose zero value is meaningful are pointers so an explicit `false`
// or `0` survives library merges.
type ControlDefinition struct {
	Key         string      `json:"key,omitempty"`
	Code        string      `json:"code,omitempty"`
	Type        ControlType `json:"type,omitempty"`
	Label       string      `json:"label,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	Hidden      *bool       `json:"hidden,omitempty"`
	Readonly    *bool       `json:"readonly,omitempty"`
	Width       Width       `json:"width,omitempty"`

	// DataPath pins the value location regardless of nesting.
	DataPath string `json:"dataPath,omitempty"`

	Options      []Option      `json:"options,omitempty"`
	CategoryCode string        `json:"categoryCode,omitempty"`
	DependentOn  string        `json:"dependentOn,omitempty"`
	DomainConfig *DomainConfig `json:"domainConfig,omitempty"`

	VisibleWhen  string `json:"visibleWhen,omitempty"`
	DisabledWhen string `json:"disabledWhen,omitempty"`
	RequiredWhen string `json:"requiredWhen,omitempty"`

	Validators map[string]any `json:"validators,omitempty"`
	Required   *bool          `json:"required,omitempty"`
	MinLength  *int           `json:"minLength,omitempty"`
	MaxLength  *int           `json:"maxLength,omitempty"`
	Min        *float64       `json:"min,omitempty"`
	Max        *float64       `json:"max,omitempty"`
	Pattern    string         `json:"pattern,omitempty"`
	Email      *bool          `json:"email,omitempty"`

	Controls []ControlConfig `json:"controls,omitempty"`

	Pagination       *Pagination        `json:"pagination,omitempty"`
	Searchable       *bool              `json:"searchable,omitempty"`
	Sortable         *bool              `json:"sortable,omitempty"`
	RowActions       []ActionDefinition `json:"rowActions,omitempty"`
	HeaderActions    []ActionDefinition `json:"headerActions,omitempty"`
	MaxInlineActions int                `json:"maxInlineActions,omitempty"`
	AddLabel         string             `json:"addLabel,omitempty"`
	MobileBehavior   string             `json:"mobileBehavior,omitempty"`
}

// NormalizedType returns the canonical control type.
func (d ControlDefinition) NormalizedType() ControlType {
	return d.Type.Normalize()
}

// Children returns the inline child definitions, skipping unresolved string
// references.
func (d ControlDefinition) Children() []ControlDefinition {
	if len(d.Controls) == 0 {
		return nil
	}
	out := make([]ControlDefinition, 0, len(d.Controls))
	for _, entry := range d.Controls {
		if entry.Control != nil {
			out = append(out, *entry.Control)
		}
	}
	return out
}

// HasOptionSource reports whether the control pulls options from static
// entries or a domain category.
func (d ControlDefinition) HasOptionSource() bool {
	return len(d.Options) > 0 || d.CategoryCode != ""
}

// HasRules reports whether the control gates itself through hidden,
// visibleWhen or disabledWhen.
func (d ControlDefinition) HasRules() bool {
	return BoolValue(d.Hidden) || d.VisibleWhen != "" || d.DisabledWhen != ""
}

// FormSchema is the top-level schema document. Sections are ordinary
// controls, usually typed group.
type FormSchema struct {
	Code     string          `json:"code,omitempty"`
	Version  string          `json:"version,omitempty"`
	Label    string          `json:"label,omitempty"`
	Sections []ControlConfig `json:"sections"`
}

// Walk visits every inline control depth-first in document order. Returning
// false from fn skips the control's children.
func (s FormSchema) Walk(fn func(def ControlDefinition, depth int) bool) {
	walkControls(s.Sections, 0, fn)
}

func walkControls(controls []ControlConfig, depth int, fn func(ControlDefinition, int) bool) {
	for _, entry := range controls {
		if entry.Control == nil {
			continue
		}
		if !fn(*entry.Control, depth) {
			continue
		}
		walkControls(entry.Control.Controls, depth+1, fn)
	}
}

// BoolValue dereferences optional booleans.
func BoolValue(v *bool) bool {
	return v != nil && *v
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
