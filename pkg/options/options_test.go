package options

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/goliatone/go-dynform/pkg/model"
	"github.com/goliatone/go-dynform/pkg/schema"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func catalog() *MemorySource {
	return NewMemorySource(map[string][]DomainValue{
		"COUNTRY": {
			{Code: "A", DisplayText: "Country A"},
			{Code: "B", DisplayText: "Country B"},
		},
		"STATE": {
			{Code: "x", DisplayText: "X", ParentCode: "A"},
			{Code: "y", DisplayText: "Y", ParentCode: "A"},
			{Code: "z", DisplayText: "Z", ParentCode: "B"},
		},
	})
}

type countingSource struct {
	inner Source
	calls atomic.Int32
}

func (c *countingSource) Fetch(ctx context.Context, category, parent string) ([]DomainValue, error) {
	c.calls.Add(1)
	return c.inner.Fetch(ctx, category, parent)
}

const addressSchema = `{"sections": [
	{"key": "countryId", "type": "select", "categoryCode": "COUNTRY"},
	{"key": "stateId", "type": "select", "categoryCode": "STATE", "dependentOn": "countryId"},
	{"key": "size", "type": "select", "options": [{"label": "Small", "value": "S"}, {"label": "One", "value": 1}]}
]}`

func newStore(t *testing.T) *model.Store {
	t.Helper()
	form, err := schema.Parse([]byte(addressSchema))
	if err != nil {
		t.Fatalf("parse schema: %v", err)
	}
	m, err := model.NewGenerator(model.WithLogger(quietLogger())).ToModel(form)
	if err != nil {
		t.Fatalf("ToModel: %v", err)
	}
	return model.NewStore(m)
}

func newProvider(t *testing.T, src Source, opts ...Option) *Provider {
	t.Helper()
	p, err := NewProvider(src, append([]Option{WithLogger(quietLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func codes(values []DomainValue) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.Code)
	}
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 1s")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDomainValueAcceptsNumericCodes(t *testing.T) {
	t.Parallel()

	var values []DomainValue
	raw := `[{"code": 42, "displayText": "Answer", "parentCode": null, "extension": {"iso": "AN"}}, {"code": "7", "displayText": "Seven", "parentCode": 42}]`
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if values[0].Code != "42" || values[0].ParentCode != "" {
		t.Fatalf("unexpected first value: %+v", values[0])
	}
	var ext map[string]any
	if err := json.Unmarshal(values[0].Extension, &ext); err != nil {
		t.Fatalf("extension: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"iso": "AN"}, ext); diff != "" {
		t.Fatalf("extension mismatch (-want +got):\n%s", diff)
	}
	if values[1].ParentCode != "42" || values[1].Extension != nil {
		t.Fatalf("unexpected second value: %+v", values[1])
	}
}

func TestProviderReplaysCompletedLoads(t *testing.T) {
	t.Parallel()

	src := &countingSource{inner: catalog()}
	p := newProvider(t, src)

	first, err := p.Get(context.Background(), "STATE", "A")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := p.Get(context.Background(), "STATE", "A")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if diff := cmp.Diff([]string{"x", "y"}, codes(first)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("replay mismatch (-first +second):\n%s", diff)
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected one fetch, got %d", got)
	}
	if !p.Cached("STATE", "A") || p.Cached("STATE", "B") {
		t.Fatal("unexpected cache state")
	}

	first[0].Code = "mutated"
	third, err := p.Get(context.Background(), "STATE", "A")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if third[0].Code != "x" {
		t.Fatalf("cached entries must not be mutable through results, got %q", third[0].Code)
	}
}

func TestProviderCoalescesConcurrentLoads(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var calls atomic.Int32
	src := SourceFunc(func(ctx context.Context, category, parent string) ([]DomainValue, error) {
		calls.Add(1)
		<-release
		return []DomainValue{{Code: "A"}}, nil
	})
	p := newProvider(t, src)

	var wg sync.WaitGroup
	results := make([][]DomainValue, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = p.Get(context.Background(), "COUNTRY", "")
		}()
	}
	// Let the callers pile up on the shared fetch before it completes.
	waitFor(t, func() bool { return calls.Load() == 1 })
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("expected one fetch, got %d", got)
	}
	for i, r := range results {
		if diff := cmp.Diff([]string{"A"}, codes(r)); diff != "" {
			t.Fatalf("result %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestProviderDoesNotCacheFailures(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	fail.Store(true)
	src := SourceFunc(func(ctx context.Context, category, parent string) ([]DomainValue, error) {
		if fail.Load() {
			return nil, errors.New("service unavailable")
		}
		return []DomainValue{{Code: "A"}}, nil
	})
	reg := prometheus.NewRegistry()
	p := newProvider(t, src, WithRegisterer(reg))

	_, err := p.Get(context.Background(), "COUNTRY", "")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) || fetchErr.Category != "COUNTRY" {
		t.Fatalf("expected FetchError for COUNTRY, got %v", err)
	}
	if p.Cached("COUNTRY", "") {
		t.Fatal("failed fetch must not be cached")
	}

	fail.Store(false)
	values, err := p.Get(context.Background(), "COUNTRY", "")
	if err != nil || len(values) != 1 {
		t.Fatalf("expected one value after recovery, got %v (err=%v)", values, err)
	}
	if _, err := p.Get(context.Background(), "COUNTRY", ""); err != nil {
		t.Fatalf("Get: %v", err)
	}

	counters := map[string]float64{
		"errors": testutil.ToFloat64(p.metrics.errors.WithLabelValues("COUNTRY")),
		"misses": testutil.ToFloat64(p.metrics.misses.WithLabelValues("COUNTRY")),
		"hits":   testutil.ToFloat64(p.metrics.hits.WithLabelValues("COUNTRY")),
	}
	if diff := cmp.Diff(map[string]float64{"errors": 1, "misses": 2, "hits": 1}, counters); diff != "" {
		t.Fatalf("metrics mismatch (-want +got):\n%s", diff)
	}

	// A second provider on the same registry shares the collectors.
	if _, err := NewProvider(src, WithRegisterer(reg)); err != nil {
		t.Fatalf("second provider: %v", err)
	}
}

func TestProviderPrefetch(t *testing.T) {
	t.Parallel()

	src := &countingSource{inner: catalog()}
	p := newProvider(t, src)

	if err := p.Prefetch(context.Background(), "COUNTRY", "STATE", ""); err != nil {
		t.Fatalf("Prefetch: %v", err)
	}
	if !p.Cached("COUNTRY", "") || !p.Cached("STATE", "") {
		t.Fatal("expected both categories cached")
	}
	if got := src.calls.Load(); got != 2 {
		t.Fatalf("expected two fetches, got %d", got)
	}
}

func TestStaticOptionsAndContains(t *testing.T) {
	t.Parallel()

	values := StaticOptions([]schema.Option{{Label: "Yes", Value: true}, {Label: "Two", Value: float64(2)}})
	if diff := cmp.Diff([]string{"true", "2"}, codes(values)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
	if !Contains(values, 2) || !Contains(values, "2") || Contains(values, "3") {
		t.Fatal("unexpected Contains results")
	}
	if CacheKey("COUNTRY", "") != "COUNTRY" || CacheKey("STATE", "A") != "STATE:A" {
		t.Fatal("unexpected cache keys")
	}
}

func TestLoadCatalogYAML(t *testing.T) {
	t.Parallel()

	src, err := LoadCatalog([]byte("STATE:\n  - code: x\n    displayText: X\n    parentCode: A\n  - code: 10\n    displayText: Ten\n    parentCode: B\n"))
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	values, err := src.Fetch(context.Background(), "STATE", "B")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if diff := cmp.Diff([]string{"10"}, codes(values)); diff != "" {
		t.Fatalf("codes mismatch (-want +got):\n%s", diff)
	}
}
