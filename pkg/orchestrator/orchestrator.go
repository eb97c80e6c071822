package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/goliatone/go-dynform/pkg/library"
	"github.com/goliatone/go-dynform/pkg/loader"
	"github.com/goliatone/go-dynform/pkg/model"
	"github.com/goliatone/go-dynform/pkg/options"
	"github.com/goliatone/go-dynform/pkg/resolver"
	"github.com/goliatone/go-dynform/pkg/schema"
	"github.com/goliatone/go-dynform/pkg/visibility"
	"github.com/goliatone/go-dynform/pkg/visibility/expr"
)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithLibrary replaces the built-in control library.
func WithLibrary(lib *library.Library) Option {
	return func(o *Orchestrator) {
		o.library = lib
	}
}

// WithLoader injects the document loader used for Request.Source.
func WithLoader(l *loader.Loader) Option {
	return func(o *Orchestrator) {
		o.loader = l
	}
}

// WithProvider injects a shared option provider. Sharing one provider across
// orchestrators shares its replay cache.
func WithProvider(p *options.Provider) Option {
	return func(o *Orchestrator) {
		o.provider = p
	}
}

// WithOptionSource builds a provider around src.
func WithOptionSource(src options.Source) Option {
	return func(o *Orchestrator) {
		o.source = src
	}
}

// WithEvaluator replaces the default rule evaluator.
func WithEvaluator(ev visibility.Evaluator) Option {
	return func(o *Orchestrator) {
		o.evaluator = ev
	}
}

// WithSchemaTransformer registers a Transformer that runs on the resolved
// schema before the model is generated.
func WithSchemaTransformer(t Transformer) Option {
	return func(o *Orchestrator) {
		o.transformer = t
	}
}

// WithExtras exposes caller flags to rules under `extras.`.
func WithExtras(extras map[string]any) Option {
	return func(o *Orchestrator) {
		o.extras = extras
	}
}

// WithLogger routes developer warnings from every stage.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Orchestrator runs load → resolve → transform → model → bind. Missing
// dependencies fall back to the built-in implementations.
type Orchestrator struct {
	library     *library.Library
	loader      *loader.Loader
	provider    *options.Provider
	source      options.Source
	evaluator   visibility.Evaluator
	transformer Transformer
	extras      map[string]any
	logger      *slog.Logger

	resolver      *resolver.Resolver
	generator     *model.Generator
	initialiseErr error
}

// New applies opts and fills in defaults. A configuration error is reported
// by the first Compile call.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{logger: slog.Default()}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.applyDefaults()
	return o
}

// Request describes one form compilation. Exactly one of Schema, Document
// or Source is needed; they are consulted in that order.
type Request struct {
	Source      schema.Source
	Document    *schema.Document
	Schema      *schema.FormSchema
	InitialData map[string]any
}

// Compile builds a live form instance. Dependent option loads start
// immediately; call Instance.Wait to block until they settle.
func (o *Orchestrator) Compile(ctx context.Context, req Request) (*Instance, error) {
	if ctx == nil {
		return nil, errors.New("orchestrator: context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if o.initialiseErr != nil {
		return nil, o.initialiseErr
	}

	form, err := o.resolveForm(ctx, req)
	if err != nil {
		return nil, err
	}
	resolved, err := o.resolver.Resolve(form)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: resolve schema: %w", err)
	}
	if err := o.applyTransformer(ctx, &resolved); err != nil {
		return nil, err
	}

	m, err := o.generator.ToModel(resolved)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build model: %w", err)
	}
	m.PatchForm(req.InitialData)

	store := model.NewStore(m)
	// Cascades outlive the compile call; Close cancels them.
	instCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	inst := &Instance{
		cancel:    cancel,
		ID:        uuid.New(),
		Schema:    resolved,
		Model:     m,
		Store:     store,
		Cascades:  make(map[string]*options.Cascade),
		evaluator: o.evaluator,
		logger:    o.logger,
	}
	inst.Watcher = visibility.NewWatcher(store, o.evaluator,
		visibility.WithWatcherLogger(o.logger),
		visibility.WithExtras(o.extras),
	)

	for _, key := range m.PathMap().Keys() {
		node, _ := m.GetControl(key)
		def := node.Definition()
		if node.Kind() != schema.KindField || !def.HasOptionSource() {
			continue
		}
		cascade, err := o.provider.Bind(instCtx, store, key)
		if err != nil {
			inst.Close()
			return nil, fmt.Errorf("orchestrator: bind options for %q: %w", key, err)
		}
		inst.Cascades[key] = cascade
	}

	o.logger.Debug("orchestrator: compiled form",
		"instance", inst.ID, "form", resolved.Code, "controls", len(m.PathMap()), "cascades", len(inst.Cascades))
	return inst, nil
}

// Provider returns the option provider in use.
func (o *Orchestrator) Provider() *options.Provider { return o.provider }

func (o *Orchestrator) resolveForm(ctx context.Context, req Request) (schema.FormSchema, error) {
	switch {
	case req.Schema != nil:
		return *req.Schema, nil
	case req.Document != nil:
		form, err := req.Document.Form()
		if err != nil {
			return schema.FormSchema{}, fmt.Errorf("orchestrator: parse document: %w", err)
		}
		return form, nil
	case req.Source != nil:
		form, err := o.loader.LoadForm(ctx, req.Source)
		if err != nil {
			return schema.FormSchema{}, fmt.Errorf("orchestrator: load document: %w", err)
		}
		return form, nil
	default:
		return schema.FormSchema{}, errors.New("orchestrator: source, document or schema is required")
	}
}

func (o *Orchestrator) applyTransformer(ctx context.Context, form *schema.FormSchema) error {
	if o.transformer == nil {
		return nil
	}
	if err := o.transformer.Transform(ctx, form); err != nil {
		return fmt.Errorf("orchestrator: transform schema: %w", err)
	}
	return nil
}

func (o *Orchestrator) applyDefaults() {
	if o.library == nil {
		o.library = library.Default()
	}
	if o.loader == nil {
		o.loader = loader.New(loader.WithLogger(o.logger))
	}
	if o.evaluator == nil {
		o.evaluator = expr.New(expr.WithLogger(o.logger))
	}
	if o.provider == nil {
		src := o.source
		if src == nil {
			src = options.NewMemorySource(nil)
		}
		provider, err := options.NewProvider(src, options.WithLogger(o.logger))
		if err != nil {
			o.initialiseErr = fmt.Errorf("orchestrator: option provider: %w", err)
			return
		}
		o.provider = provider
	}
	o.resolver = resolver.New(o.library, resolver.WithLogger(o.logger))
	o.generator = model.NewGenerator(model.WithLogger(o.logger))
}
