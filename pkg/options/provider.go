package options

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultFetchTimeout = 30 * time.Second

// Option customises a Provider.
type Option func(*Provider)

// WithLogger routes fetch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFetchTimeout bounds each shared fetch. The fetch is detached from the
// first caller's context so a cancelled caller does not fail the others.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.fetchTimeout = d
		}
	}
}

// WithRegisterer registers the provider metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(p *Provider) {
		p.registerer = reg
	}
}

// Provider memoises domain-data lookups by `category` or `category:parent`.
// Concurrent requests for the same key share one fetch; completed results are
// replayed to every later caller. Failures are not cached.
type Provider struct {
	src          Source
	logger       *slog.Logger
	fetchTimeout time.Duration
	registerer   prometheus.Registerer
	metrics      *metrics

	mu     sync.RWMutex
	cache  map[string][]DomainValue
	flight singleflight.Group
}

// NewProvider wraps src.
func NewProvider(src Source, opts ...Option) (*Provider, error) {
	if src == nil {
		return nil, errors.New("options: source is nil")
	}
	p := &Provider{
		src:          src,
		logger:       slog.Default(),
		fetchTimeout: defaultFetchTimeout,
		cache:        make(map[string][]DomainValue),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	m, err := newMetrics(p.registerer)
	if err != nil {
		return nil, err
	}
	p.metrics = m
	return p, nil
}

// Get returns the values for category narrowed to parent. The returned slice
// is a copy.
func (p *Provider) Get(ctx context.Context, category, parent string) ([]DomainValue, error) {
	if category == "" {
		return nil, errors.New("options: category is required")
	}
	key := CacheKey(category, parent)

	p.mu.RLock()
	cached, ok := p.cache[key]
	p.mu.RUnlock()
	if ok {
		p.metrics.hits.WithLabelValues(category).Inc()
		return cloneValues(cached), nil
	}
	p.metrics.misses.WithLabelValues(category).Inc()

	ch := p.flight.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.fetchTimeout)
		defer cancel()

		values, err := p.src.Fetch(fetchCtx, category, parent)
		if err != nil {
			p.metrics.errors.WithLabelValues(category).Inc()
			p.logger.Warn("options: fetch failed", "category", category, "parent", parent, "error", err)
			return nil, &FetchError{Category: category, Parent: parent, Err: err}
		}
		if values == nil {
			values = []DomainValue{}
		}

		p.mu.Lock()
		if existing, ok := p.cache[key]; ok {
			values = existing
		} else {
			p.cache[key] = values
		}
		p.mu.Unlock()
		return values, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return cloneValues(res.Val.([]DomainValue)), nil
	}
}

// Cached reports whether key has a completed entry.
func (p *Provider) Cached(category, parent string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.cache[CacheKey(category, parent)]
	return ok
}

// Prefetch loads several independent categories concurrently and returns the
// first error.
func (p *Provider) Prefetch(ctx context.Context, categories ...string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, category := range categories {
		if category == "" {
			continue
		}
		g.Go(func() error {
			if _, err := p.Get(gctx, category, ""); err != nil {
				return fmt.Errorf("options: prefetch %s: %w", category, err)
			}
			return nil
		})
	}
	return g.Wait()
}

type metrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
	errors *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynform_option_cache_hits_total",
			Help: "Domain value lookups served from the option cache",
		}, []string{"category"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynform_option_cache_misses_total",
			Help: "Domain value lookups that required a fetch or joined one in flight",
		}, []string{"category"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dynform_option_fetch_errors_total",
			Help: "Failed domain value fetches",
		}, []string{"category"}),
	}
	if reg == nil {
		return m, nil
	}
	var err error
	if m.hits, err = register(reg, m.hits); err != nil {
		return nil, err
	}
	if m.misses, err = register(reg, m.misses); err != nil {
		return nil, err
	}
	if m.errors, err = register(reg, m.errors); err != nil {
		return nil, err
	}
	return m, nil
}

// register reuses an already registered collector so several providers can
// share one registry.
func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("options: register metrics: %w", err)
	}
	return c, nil
}
