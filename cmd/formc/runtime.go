package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/goliatone/go-dynform"
	"github.com/goliatone/go-dynform/pkg/library"
	"github.com/goliatone/go-dynform/pkg/loader"
	"github.com/goliatone/go-dynform/pkg/options"
	"github.com/goliatone/go-dynform/pkg/options/httpsource"
	"github.com/goliatone/go-dynform/pkg/options/sqlsource"
	"github.com/goliatone/go-dynform/pkg/orchestrator"
	"github.com/goliatone/go-dynform/pkg/schema"
)

// runtime holds what every command shares: the domain value source, the
// control library and, when a database is configured, the open handle.
type runtime struct {
	cfg     Config
	source  options.Source
	library *library.Library
	loader  *loader.Loader
	db      *sql.DB
}

func openRuntime(ctx context.Context, cfg Config) (*runtime, error) {
	rt := &runtime{cfg: cfg}

	loaderOpts := []loader.Option{loader.WithLogger(logger), loader.WithAllowHTTP(cfg.AllowHTTP)}
	rt.loader = loader.New(loaderOpts...)

	rt.library = library.Default()
	if cfg.Library != "" {
		src, err := schema.ParseSource(cfg.Library)
		if err != nil {
			return nil, err
		}
		custom, err := rt.loader.LoadLibrary(ctx, src)
		if err != nil {
			return nil, err
		}
		rt.library = library.Merge(rt.library, custom)
	}

	if err := rt.openSource(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) openSource(ctx context.Context) error {
	switch {
	case rt.cfg.DomainURL != "":
		src, err := httpsource.New(rt.cfg.DomainURL, httpsource.WithLogger(logger))
		if err != nil {
			return err
		}
		rt.source = src
		return nil
	case rt.cfg.Database != "":
		db, err := sql.Open("sqlite", rt.cfg.Database)
		if err != nil {
			return fmt.Errorf("formc: open database: %w", err)
		}
		db.SetMaxOpenConns(1)
		rt.db = db
		if err := sqlsource.Migrate(ctx, db); err != nil {
			return err
		}
		src, err := sqlsource.New(db, sqlsource.WithLogger(logger))
		if err != nil {
			return err
		}
		rt.source = src
		return nil
	default:
		catalog, err := readCatalog(rt.cfg.Catalog)
		if err != nil {
			return err
		}
		rt.source = options.NewMemorySource(catalog)
		return nil
	}
}

// orchestrator builds an orchestrator over the runtime. Extra options are
// applied last.
func (rt *runtime) orchestrator(extra ...orchestrator.Option) *orchestrator.Orchestrator {
	opts := []orchestrator.Option{
		orchestrator.WithLibrary(rt.library),
		orchestrator.WithLoader(rt.loader),
		orchestrator.WithOptionSource(rt.source),
		orchestrator.WithLogger(logger),
	}
	return orchestrator.New(append(opts, extra...)...)
}

func (rt *runtime) Close() {
	if rt == nil || rt.db == nil {
		return
	}
	if err := rt.db.Close(); err != nil {
		logger.Warn("formc: close database", "error", err)
	}
}

// readCatalog decodes a `{CATEGORY: [values]}` document from path, or the
// bundled example catalog when path is empty.
func readCatalog(path string) (map[string][]options.DomainValue, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = fs.ReadFile(dynform.ExamplesFS(), "catalog.yaml")
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("formc: read catalog: %w", err)
	}
	var catalog map[string][]options.DomainValue
	if err := schema.Decode(data, &catalog); err != nil {
		return nil, fmt.Errorf("formc: parse catalog: %w", err)
	}
	if catalog == nil {
		return nil, errors.New("formc: catalog is empty")
	}
	return catalog, nil
}

// readData decodes an optional JSON or YAML values file.
func readData(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("formc: read data: %w", err)
	}
	var out map[string]any
	if err := schema.Decode(data, &out); err != nil {
		return nil, fmt.Errorf("formc: parse data: %w", err)
	}
	return out, nil
}

// compileLocation compiles the form at location, which may be a file path, a
// URL or `example:<name>` for a bundled form.
func (rt *runtime) compileLocation(ctx context.Context, location string, initial map[string]any) (*orchestrator.Instance, error) {
	if name, ok := exampleName(location); ok {
		raw, err := fs.ReadFile(dynform.ExamplesFS(), "forms/"+name+".json")
		if err != nil {
			return nil, fmt.Errorf("formc: example %q: %w", name, err)
		}
		doc, err := schema.NewDocument(schema.SourceFromFS("forms/"+name+".json"), raw)
		if err != nil {
			return nil, err
		}
		return rt.orchestrator().Compile(ctx, orchestrator.Request{Document: &doc, InitialData: initial})
	}
	src, err := schema.ParseSource(location)
	if err != nil {
		return nil, err
	}
	return rt.orchestrator().Compile(ctx, orchestrator.Request{Source: src, InitialData: initial})
}

func exampleName(location string) (string, bool) {
	const prefix = "example:"
	name, ok := strings.CutPrefix(location, prefix)
	return name, ok && name != ""
}
