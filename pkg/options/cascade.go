package options

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-dynform/pkg/model"
)

// ChangeListener receives the option list after every applied load.
type ChangeListener func(values []DomainValue, err error)

// Cascade keeps the option list of one select or tree control in sync with
// its data source. Dependent controls reload whenever the parent value
// changes; only the latest parent transition may land.
type Cascade struct {
	provider   *Provider
	store      *model.Store
	key        string
	path       string
	category   string
	parentPath string
	ctx        context.Context

	mu         sync.Mutex
	values     []DomainValue
	loading    bool
	err        error
	seq        uint64
	lastParent string
	hasParent  bool
	cancel     context.CancelFunc
	listeners  []ChangeListener
	closed     bool
	sub        *model.Subscription

	inflight sync.WaitGroup
}

// Bind attaches a cascade to the control registered under key. Static
// options are applied immediately; a category without dependentOn loads
// once; a dependent control loads with the parent's current value and again
// on every distinct parent change.
func (p *Provider) Bind(ctx context.Context, store *model.Store, key string) (*Cascade, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	m := store.Model()
	node, ok := m.GetControl(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrControlNotFound, key)
	}
	def := node.Definition()
	path, _ := m.GetDataPath(key)

	c := &Cascade{
		provider: p,
		store:    store,
		key:      key,
		path:     path,
		category: def.CategoryCode,
		ctx:      ctx,
	}

	switch {
	case def.CategoryCode == "":
		c.values = StaticOptions(def.Options)
		if c.values == nil {
			c.values = []DomainValue{}
		}
	case def.DependentOn == "":
		c.load("")
	default:
		c.parentPath = def.DependentOn
		if parentPath, ok := m.GetDataPath(def.DependentOn); ok {
			c.parentPath = parentPath
		}
		c.sub = store.Subscribe(func(ev model.Event) {
			c.parentChanged(valueAt(ev.Values, c.parentPath))
		})
		current, _ := store.Get(c.parentPath)
		c.parentChanged(current)
	}
	return c, nil
}

// Key returns the bound control key.
func (c *Cascade) Key() string { return c.key }

// Options returns a copy of the current option list.
func (c *Cascade) Options() []DomainValue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneValues(c.values)
}

// Loading reports whether a load is outstanding.
func (c *Cascade) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Err returns the error of the last applied load.
func (c *Cascade) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// OnChange registers fn for applied loads.
func (c *Cascade) OnChange(fn ChangeListener) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Wait blocks until every started load has finished or been discarded.
func (c *Cascade) Wait() {
	c.inflight.Wait()
}

// Close cancels the outstanding load and stops following the parent.
func (c *Cascade) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	sub := c.sub
	c.listeners = nil
	c.mu.Unlock()
	sub.Unsubscribe()
}

func (c *Cascade) parentChanged(value any) {
	parent := parentCode(value)
	c.mu.Lock()
	if c.closed || (c.hasParent && parent == c.lastParent) {
		c.mu.Unlock()
		return
	}
	c.hasParent = true
	c.lastParent = parent
	c.mu.Unlock()

	if parent == "" {
		c.apply(c.next(), []DomainValue{}, nil)
		return
	}
	c.load(parent)
}

// next supersedes any outstanding load and returns the new sequence number.
func (c *Cascade) next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return c.seq
}

func (c *Cascade) load(parent string) {
	seq := c.next()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.cancel = cancel
	c.loading = true
	c.inflight.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.inflight.Done()
		defer cancel()
		values, err := c.provider.Get(ctx, c.category, parent)
		c.apply(seq, values, err)
	}()
}

// apply lands a load result if seq is still the latest request, then clears
// a selection that the new list cannot contain.
func (c *Cascade) apply(seq uint64, values []DomainValue, err error) {
	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		return
	}
	c.loading = false
	if err != nil {
		c.values = []DomainValue{}
		c.err = err
		// Selecting the same parent again retries the load.
		c.hasParent = false
	} else {
		c.values = values
		c.err = nil
	}
	snapshot := cloneValues(c.values)
	listeners := append([]ChangeListener(nil), c.listeners...)
	c.mu.Unlock()

	if err == nil {
		c.reconcile(seq, snapshot)
	}
	for _, fn := range listeners {
		fn(snapshot, err)
	}
}

// reconcile clears the selection when it is missing from values. A newer
// load that landed in the meantime owns the selection instead.
func (c *Cascade) reconcile(seq uint64, values []DomainValue) {
	if c.path == "" {
		return
	}
	selected, ok := c.store.Get(c.path)
	if !ok || parentCode(selected) == "" {
		return
	}
	if Contains(values, selected) {
		return
	}
	c.mu.Lock()
	current := !c.closed && seq == c.seq
	c.mu.Unlock()
	if !current {
		return
	}
	_ = c.store.Set(c.path, nil)
}

func parentCode(v any) string {
	return strings.TrimSpace(scalarString(v))
}

func valueAt(values map[string]any, path string) any {
	var current any = values
	for _, seg := range strings.Split(path, ".") {
		switch typed := current.(type) {
		case map[string]any:
			current = typed[seg]
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil
			}
			current = typed[idx]
		default:
			return nil
		}
	}
	return current
}
