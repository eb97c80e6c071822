package options

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// gatedSource blocks each key until its gate is released.
type gatedSource struct {
	mu     sync.Mutex
	gates  map[string]chan struct{}
	values map[string][]DomainValue
}

func newGatedSource(keys ...string) *gatedSource {
	g := &gatedSource{gates: map[string]chan struct{}{}, values: map[string][]DomainValue{}}
	for _, key := range keys {
		g.gates[key] = make(chan struct{})
		g.values[key] = []DomainValue{{Code: key + "-1"}}
	}
	return g
}

func (g *gatedSource) Fetch(ctx context.Context, category, parent string) ([]DomainValue, error) {
	g.mu.Lock()
	gate := g.gates[CacheKey(category, parent)]
	values := g.values[CacheKey(category, parent)]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return values, nil
}

func (g *gatedSource) release(key string) {
	close(g.gates[key])
}

func mustSet(t *testing.T, set func(string, any) error, path string, value any) {
	t.Helper()
	if err := set(path, value); err != nil {
		t.Fatalf("Set(%q): %v", path, err)
	}
}

func TestCascadeResetsInvalidSelection(t *testing.T) {
	t.Parallel()

	p := newProvider(t, catalog())
	store := newStore(t)

	states, err := p.Bind(context.Background(), store, "stateId")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer states.Close()

	mustSet(t, store.Set, "countryId", "A")
	states.Wait()
	if diff := cmp.Diff([]string{"x", "y"}, codes(states.Options())); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}

	mustSet(t, store.Set, "stateId", "x")
	mustSet(t, store.Set, "countryId", "B")
	states.Wait()

	if diff := cmp.Diff([]string{"z"}, codes(states.Options())); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if value, _ := store.Get("stateId"); value != nil {
		t.Fatalf("selection missing from the new list must be cleared, got %v", value)
	}
}

func TestCascadeKeepsValidSelection(t *testing.T) {
	t.Parallel()

	p := newProvider(t, catalog())
	store := newStore(t)
	if err := store.Patch(map[string]any{"countryId": "A", "stateId": "y"}); err != nil {
		t.Fatalf("Patch: %v", err)
	}

	states, err := p.Bind(context.Background(), store, "stateId")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer states.Close()
	states.Wait()

	if diff := cmp.Diff([]string{"x", "y"}, codes(states.Options())); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	if value, _ := store.Get("stateId"); value != "y" {
		t.Fatalf("expected selection y to survive, got %v", value)
	}
}

func TestCascadeSupersededLoadKeepsSelection(t *testing.T) {
	t.Parallel()

	p := newProvider(t, catalog())
	store := newStore(t)

	states, err := p.Bind(context.Background(), store, "stateId")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer states.Close()

	mustSet(t, store.Set, "countryId", "A")
	states.Wait()
	mustSet(t, store.Set, "stateId", "x")

	stale := states.next()
	states.next()
	states.reconcile(stale, []DomainValue{{Code: "z"}})

	if value, _ := store.Get("stateId"); value != "x" {
		t.Fatalf("a superseded load must not clear the selection, got %v", value)
	}
}

func TestCascadeEmptyParentSkipsFetch(t *testing.T) {
	t.Parallel()

	src := &countingSource{inner: catalog()}
	p := newProvider(t, src)
	store := newStore(t)

	states, err := p.Bind(context.Background(), store, "stateId")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer states.Close()
	states.Wait()

	if opts := states.Options(); opts == nil || len(opts) != 0 {
		t.Fatalf("expected an empty, non-nil option list, got %#v", opts)
	}
	if states.Loading() {
		t.Fatal("expected no load in flight")
	}
	if got := src.calls.Load(); got != 0 {
		t.Fatalf("expected no fetch, got %d", got)
	}

	mustSet(t, store.Set, "countryId", "A")
	states.Wait()
	mustSet(t, store.Set, "countryId", nil)
	states.Wait()
	if len(states.Options()) != 0 {
		t.Fatalf("expected options cleared, got %v", codes(states.Options()))
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected one fetch, got %d", got)
	}
}

func TestCascadeLatestParentWins(t *testing.T) {
	t.Parallel()

	src := newGatedSource("STATE:A", "STATE:B", "STATE:C")
	p := newProvider(t, src)
	store := newStore(t)

	states, err := p.Bind(context.Background(), store, "stateId")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer states.Close()

	var mu sync.Mutex
	var applied [][]string
	states.OnChange(func(values []DomainValue, err error) {
		mu.Lock()
		defer mu.Unlock()
		applied = append(applied, codes(values))
	})

	mustSet(t, store.Set, "countryId", "A")
	mustSet(t, store.Set, "countryId", "B")
	mustSet(t, store.Set, "countryId", "C")
	if !states.Loading() {
		t.Fatal("expected a load in flight")
	}

	src.release("STATE:C")
	states.Wait()
	src.release("STATE:B")
	src.release("STATE:A")

	// Let the superseded fetches finish inside the provider.
	waitFor(t, func() bool {
		return p.Cached("STATE", "A") && p.Cached("STATE", "B")
	})

	if diff := cmp.Diff([]string{"STATE:C-1"}, codes(states.Options())); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff([][]string{{"STATE:C-1"}}, applied); diff != "" {
		t.Fatalf("applied loads mismatch (-want +got):\n%s", diff)
	}
}

func TestCascadeFetchErrorSurfaces(t *testing.T) {
	t.Parallel()

	boom := errors.New("domain service down")
	src := SourceFunc(func(ctx context.Context, category, parent string) ([]DomainValue, error) {
		return nil, boom
	})
	p := newProvider(t, src)
	store := newStore(t)

	countries, err := p.Bind(context.Background(), store, "countryId")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer countries.Close()

	countries.Wait()
	if len(countries.Options()) != 0 || countries.Loading() {
		t.Fatalf("expected empty settled options, got %v (loading=%v)", codes(countries.Options()), countries.Loading())
	}
	if !errors.Is(countries.Err(), boom) {
		t.Fatalf("expected wrapped source error, got %v", countries.Err())
	}
	var fetchErr *FetchError
	if !errors.As(countries.Err(), &fetchErr) || fetchErr.Category != "COUNTRY" {
		t.Fatalf("expected FetchError for COUNTRY, got %v", countries.Err())
	}
}

func TestCascadeRetriesSameParentAfterError(t *testing.T) {
	t.Parallel()

	var fail atomic.Bool
	fail.Store(true)
	src := SourceFunc(func(ctx context.Context, category, parent string) ([]DomainValue, error) {
		if category == "STATE" && fail.Load() {
			return nil, errors.New("domain service down")
		}
		return catalog().Fetch(ctx, category, parent)
	})
	p := newProvider(t, src)
	store := newStore(t)

	states, err := p.Bind(context.Background(), store, "stateId")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer states.Close()

	mustSet(t, store.Set, "countryId", "A")
	states.Wait()
	if states.Err() == nil {
		t.Fatal("expected the first load to fail")
	}

	fail.Store(false)
	mustSet(t, store.Set, "countryId", "A")
	states.Wait()
	if states.Err() != nil {
		t.Fatalf("expected the retry to succeed, got %v", states.Err())
	}
	if diff := cmp.Diff([]string{"x", "y"}, codes(states.Options())); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestCascadeStaticOptions(t *testing.T) {
	t.Parallel()

	p := newProvider(t, catalog())
	sizes, err := p.Bind(context.Background(), newStore(t), "size")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	defer sizes.Close()
	if diff := cmp.Diff([]string{"S", "1"}, codes(sizes.Options())); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestCascadeIndependentCategoryLoadsOnce(t *testing.T) {
	t.Parallel()

	src := &countingSource{inner: catalog()}
	p := newProvider(t, src)

	for i := 0; i < 3; i++ {
		c, err := p.Bind(context.Background(), newStore(t), "countryId")
		if err != nil {
			t.Fatalf("Bind: %v", err)
		}
		c.Wait()
		if diff := cmp.Diff([]string{"A", "B"}, codes(c.Options())); diff != "" {
			t.Fatalf("options mismatch (-want +got):\n%s", diff)
		}
		c.Close()
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected one fetch, got %d", got)
	}
}

func TestBindUnknownControl(t *testing.T) {
	t.Parallel()

	p := newProvider(t, catalog())
	if _, err := p.Bind(context.Background(), newStore(t), "nope"); err == nil {
		t.Fatal("expected error for unknown control")
	}
}
