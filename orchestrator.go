package dynform

import (
	"context"

	"github.com/goliatone/go-dynform/pkg/orchestrator"
	"github.com/goliatone/go-dynform/pkg/schema"
)

// Instance is a compiled, live form.
type Instance = orchestrator.Instance

// Request describes one compilation.
type Request = orchestrator.Request

// FormSchema is the top-level schema document.
type FormSchema = schema.FormSchema

// ControlDefinition describes one control.
type ControlDefinition = schema.ControlDefinition

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// Compile loads the form at source and compiles it with the supplied
// options. It is the simplest entry point for callers that want a live
// form from a file or URL.
func Compile(ctx context.Context, source schema.Source, initial map[string]any, options ...orchestrator.Option) (*Instance, error) {
	return orchestrator.New(options...).Compile(ctx, orchestrator.Request{
		Source:      source,
		InitialData: initial,
	})
}

// CompileDocument compiles a raw JSON or YAML schema payload, bypassing the
// loader.
func CompileDocument(ctx context.Context, raw []byte, initial map[string]any, options ...orchestrator.Option) (*Instance, error) {
	form, err := schema.Parse(raw)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(options...).Compile(ctx, orchestrator.Request{
		Schema:      &form,
		InitialData: initial,
	})
}
