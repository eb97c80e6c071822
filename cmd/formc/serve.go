package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-dynform"
	"github.com/goliatone/go-dynform/components/domainvalues"
	"github.com/goliatone/go-dynform/pkg/options"
	"github.com/goliatone/go-dynform/pkg/options/sqlsource"
	"github.com/goliatone/go-dynform/pkg/orchestrator"
	"github.com/goliatone/go-dynform/pkg/schema"
)

var (
	serveListen string
	serveForms  string
	serveSeed   bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve schema documents, domain values and compile results over HTTP",
		Long: `Routes:
  GET  /form/{code}          raw schema document
  POST /form/{code}/compile  compile with the JSON body as initial values
  GET  /domain/{category}    domain values (?parentCode=, ?q=, ?limit=)
  GET  /metrics              Prometheus metrics
  GET  /healthz              liveness

With --db, documents come from the form_schema table and values from
domain_data; --seed loads the catalog and the forms directory into them first.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
)

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&serveListen, "listen", "", "listen address (default :8080)")
	flags.StringVar(&serveForms, "forms", "", "directory of form documents (defaults to the bundled examples)")
	flags.BoolVar(&serveSeed, "seed", false, "with --db, load the catalog and forms into the database")
	serveCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("listen") {
			config.Listen = serveListen
		}
		if cmd.Flags().Changed("forms") {
			config.Forms = serveForms
		}
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, config)
	if err != nil {
		return err
	}
	defer rt.Close()

	files, err := newFSForms(formsFS(config.Forms))
	if err != nil {
		return err
	}
	var forms formStore = files
	if rt.db != nil {
		if serveSeed {
			if err := seed(ctx, rt, files); err != nil {
				return err
			}
		}
		forms = sqlsource.NewForms(rt.db)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	handler, err := newRouter(rt, forms, reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              config.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("formc: serving", "addr", config.Listen, "source", config.describeSource())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func formsFS(dir string) (fs.FS, string) {
	if dir == "" {
		return dynform.ExamplesFS(), "forms"
	}
	return os.DirFS(dir), "."
}

func seed(ctx context.Context, rt *runtime, files *fsForms) error {
	catalog, err := readCatalog(rt.cfg.Catalog)
	if err != nil {
		return err
	}
	if err := sqlsource.Seed(ctx, rt.db, catalog); err != nil {
		return err
	}
	store := sqlsource.NewForms(rt.db)
	for _, code := range files.Codes() {
		raw, _ := files.Load(ctx, code)
		if err := store.Save(ctx, code, raw); err != nil {
			return err
		}
	}
	logger.Info("formc: database seeded", "categories", len(catalog), "forms", len(files.Codes()))
	return nil
}

type server struct {
	rt       *runtime
	forms    formStore
	provider *options.Provider
}

// newRouter wires every route. Domain lookups and compile requests share one
// provider so its replay cache and metrics cover both.
func newRouter(rt *runtime, forms formStore, reg *prometheus.Registry) (http.Handler, error) {
	provider, err := options.NewProvider(rt.source,
		options.WithLogger(logger),
		options.WithRegisterer(reg),
	)
	if err != nil {
		return nil, err
	}
	s := &server{rt: rt, forms: forms, provider: provider}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/form/{code}", s.getForm)
	r.Post("/form/{code}/compile", s.compileForm)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	values := domainvalues.New(
		domainvalues.WithSource(options.SourceFunc(provider.Get)),
		domainvalues.WithLogger(logger),
	)
	if _, err := values.RegisterRoutes(r, "/"); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *server) getForm(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.load(w, r)
	if !ok {
		return
	}
	form, err := schema.Parse(raw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeResponse(w, http.StatusOK, form)
}

func (s *server) compileForm(w http.ResponseWriter, r *http.Request) {
	raw, ok := s.load(w, r)
	if !ok {
		return
	}
	var initial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&initial); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	form, err := schema.Parse(raw)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	inst, err := s.rt.orchestrator(orchestrator.WithProvider(s.provider)).Compile(r.Context(), orchestrator.Request{
		Schema:      &form,
		InitialData: initial,
	})
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	defer inst.Close()
	inst.Wait()
	writeResponse(w, http.StatusOK, newReport(inst))
}

func (s *server) load(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	code := chi.URLParam(r, "code")
	raw, err := s.forms.Load(r.Context(), code)
	switch {
	case err == nil:
		return raw, true
	case isNotFound(err):
		writeError(w, http.StatusNotFound, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
	return nil, false
}

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("formc: encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeResponse(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("formc: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
