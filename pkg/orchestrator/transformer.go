package orchestrator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/goliatone/go-dynform/pkg/schema"
)

// Transformer mutates a resolved schema before the model is generated.
type Transformer interface {
	Transform(ctx context.Context, form *schema.FormSchema) error
}

// TransformerFunc adapts plain functions to the Transformer interface.
type TransformerFunc func(ctx context.Context, form *schema.FormSchema) error

// Transform executes the wrapped function when non-nil.
func (fn TransformerFunc) Transform(ctx context.Context, form *schema.FormSchema) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, form)
}

// PresetTransformer applies declarative per-control patches keyed by control
// key:
//
//	{
//	  "label": "Employee (v2)",
//	  "controls": {
//	    "email": {"label": "Work email", "required": true},
//	    "notes": {"hidden": true}
//	  }
//	}
//
// A patch is merged onto the control with the same precedence as inline
// overrides: every field present in the patch wins.
type PresetTransformer struct {
	label    string
	controls map[string]map[string]any
}

type presetDocument struct {
	Label    string                    `json:"label"`
	Controls map[string]map[string]any `json:"controls"`
}

// NewPresetTransformer parses a JSON or YAML preset document.
func NewPresetTransformer(data []byte) (*PresetTransformer, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("preset transformer: document is empty")
	}
	var doc presetDocument
	if err := schema.Decode(data, &doc); err != nil {
		return nil, fmt.Errorf("preset transformer: parse document: %w", err)
	}
	return &PresetTransformer{label: doc.Label, controls: doc.Controls}, nil
}

// NewPresetTransformerFromFS loads a preset document from fsys.
func NewPresetTransformerFromFS(fsys fs.FS, path string) (*PresetTransformer, error) {
	if fsys == nil {
		return nil, errors.New("preset transformer: filesystem is nil")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("preset transformer: path is required")
	}
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("preset transformer: read %s: %w", path, err)
	}
	return NewPresetTransformer(data)
}

// Transform applies the patches. A patch naming a missing control is an
// error.
func (t *PresetTransformer) Transform(ctx context.Context, form *schema.FormSchema) error {
	if form == nil {
		return errors.New("preset transformer: form is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.label != "" {
		form.Label = t.label
	}

	applied := make(map[string]bool, len(t.controls))
	var patchErr error
	var visit func(entries []schema.ControlConfig)
	visit = func(entries []schema.ControlConfig) {
		for idx := range entries {
			def := entries[idx].Control
			if def == nil || patchErr != nil {
				continue
			}
			if patch, ok := t.controls[def.Key]; ok && def.Key != "" {
				patched, err := applyPatch(*def, patch)
				if err != nil {
					patchErr = fmt.Errorf("preset transformer: control %q: %w", def.Key, err)
					return
				}
				*def = patched
				applied[def.Key] = true
			}
			visit(def.Controls)
		}
	}
	visit(form.Sections)
	if patchErr != nil {
		return patchErr
	}

	for key := range t.controls {
		if !applied[key] {
			return fmt.Errorf("preset transformer: control %q not found", key)
		}
	}
	return nil
}

func applyPatch(def schema.ControlDefinition, patch map[string]any) (schema.ControlDefinition, error) {
	fields, err := def.Fields()
	if err != nil {
		return def, err
	}
	for k, v := range patch {
		fields[k] = v
	}
	return schema.FromFields(fields)
}
