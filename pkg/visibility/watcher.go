package visibility

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/goliatone/go-dynform/pkg/model"
	"github.com/goliatone/go-dynform/pkg/schema"
)

// ControlState is the evaluated gating state of one control.
type ControlState struct {
	Visible  bool
	Disabled bool
	Required bool
}

// StateListener is notified when a control's state changes.
type StateListener func(key string, state ControlState)

// WatcherOption customises a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger routes rule evaluation warnings.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithExtras exposes caller flags to every rule under `extras.`.
func WithExtras(extras map[string]any) WatcherOption {
	return func(w *Watcher) {
		w.extras = extras
	}
}

// watchedControl is one rule owner. Keyless sections and controls shadowed by
// an earlier duplicate key have an empty key and no published state.
type watchedControl struct {
	key    string
	path   string
	def    schema.ControlDefinition
	covers []string
}

// Watcher re-evaluates visibleWhen, disabledWhen and requiredWhen for every
// registered control each time the store emits, then applies the result to
// the model: hidden or disabled controls disable their fields and
// requiredWhen toggles the dynamic required rule.
type Watcher struct {
	store    *model.Store
	eval     Evaluator
	logger   *slog.Logger
	extras   map[string]any
	controls []watchedControl

	mu        sync.RWMutex
	states    map[string]ControlState
	listeners []StateListener
	sub       *model.Subscription
}

// NewWatcher evaluates every rule against the current values and subscribes
// to future changes. Call Close to unsubscribe.
func NewWatcher(store *model.Store, eval Evaluator, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		store:  store,
		eval:   eval,
		logger: slog.Default(),
		states: make(map[string]ControlState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}

	w.controls = collect(store.Model())

	w.apply(store.Snapshot())
	w.sub = store.Subscribe(func(ev model.Event) {
		w.apply(ev.Values)
	})
	return w
}

// State returns the last evaluated state for key.
func (w *Watcher) State(key string) (ControlState, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	state, ok := w.states[key]
	return state, ok
}

// States returns a copy of every control state.
func (w *Watcher) States() map[string]ControlState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make(map[string]ControlState, len(w.states))
	for k, v := range w.states {
		out[k] = v
	}
	return out
}

// OnChange registers fn for state transitions.
func (w *Watcher) OnChange(fn StateListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	w.listeners = append(w.listeners, fn)
	w.mu.Unlock()
}

// Close stops watching the store.
func (w *Watcher) Close() {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.listeners = nil
	w.mu.Unlock()
	sub.Unsubscribe()
}

func (w *Watcher) apply(values map[string]any) {
	ctx := ModelContext(values)
	ctx.Extras = w.extras

	next := make([]ControlState, len(w.controls))
	for i, c := range w.controls {
		next[i] = w.evaluate(c, ctx)
	}

	w.store.Update(func(m *model.FormModel) {
		for _, f := range m.Root().Fields() {
			disabled, required := w.effective(f, next)
			f.SetDisabled(disabled)
			f.SetDynamicRequired(required)
		}
	})

	type change struct {
		key   string
		state ControlState
	}
	var changes []change
	w.mu.Lock()
	for i, c := range w.controls {
		if c.key == "" {
			continue
		}
		state := next[i]
		if prev, ok := w.states[c.key]; !ok || prev != state {
			changes = append(changes, change{key: c.key, state: state})
		}
		w.states[c.key] = state
	}
	listeners := append([]StateListener(nil), w.listeners...)
	w.mu.Unlock()

	for _, ch := range changes {
		for _, fn := range listeners {
			fn(ch.key, ch.state)
		}
	}
}

func (w *Watcher) evaluate(c watchedControl, ctx Context) ControlState {
	state := ControlState{Visible: !schema.BoolValue(c.def.Hidden)}
	if state.Visible && c.def.VisibleWhen != "" {
		state.Visible = Check(w.eval, w.logger, c.path, c.def.VisibleWhen, ctx)
	}
	if c.def.DisabledWhen != "" {
		state.Disabled = Check(w.eval, w.logger, c.path, c.def.DisabledWhen, ctx)
	}
	if c.def.RequiredWhen != "" {
		state.Required = Check(w.eval, w.logger, c.path, c.def.RequiredWhen, ctx)
	}
	return state
}

// effective folds the states of a field and every control above it. Row
// fields inherit from their table.
func (w *Watcher) effective(f *model.Field, states []ControlState) (disabled, required bool) {
	path := f.Path()
	for i, c := range w.controls {
		if !covered(path, c.covers) {
			continue
		}
		state := states[i]
		if !state.Visible || state.Disabled {
			disabled = true
		}
		if c.path == path && state.Required {
			required = true
		}
	}
	return disabled, required
}

func covered(path string, scopes []string) bool {
	for _, scope := range scopes {
		if path == scope || strings.HasPrefix(path, scope+".") {
			return true
		}
	}
	return false
}

// collect lists the keyed controls in key order, then controls reachable only
// by path, then keyless sections.
func collect(m *model.FormModel) []watchedControl {
	paths := m.PathMap()
	registered := make(map[string]bool, len(paths))
	var out []watchedControl
	for _, key := range paths.Keys() {
		node, _ := m.GetControl(key)
		path := paths[key]
		registered[path] = true
		out = append(out, watchedControl{key: key, path: path, def: node.Definition(), covers: []string{path}})
	}

	var walk func(g *model.Group)
	walk = func(g *model.Group) {
		for _, child := range g.Children() {
			def := child.Definition()
			if !registered[child.Path()] && (def.HasRules() || def.RequiredWhen != "") {
				out = append(out, watchedControl{path: child.Path(), def: def, covers: []string{child.Path()}})
			}
			if group, ok := child.(*model.Group); ok {
				walk(group)
			}
		}
	}
	walk(m.Root())

	for _, section := range m.Sections() {
		def := section.Definition()
		out = append(out, watchedControl{def: def, covers: section.Paths()})
	}
	return out
}
