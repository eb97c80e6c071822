package model

import (
	"errors"
	"sync"
)

// ErrStoreClosed is returned by mutations after Close.
var ErrStoreClosed = errors.New("model: store closed")

// Event describes one value change. Values is a deep copy of the root values
// taken when the change was applied, so every subscriber observes the same
// state regardless of later mutations.
type Event struct {
	// Path is the changed path, empty for batches and whole-form patches.
	Path     string
	Values   map[string]any
	Revision uint64
}

// Listener receives store events.
type Listener func(Event)

// Subscription is a scoped registration returned by Subscribe.
type Subscription struct {
	store  *Store
	fn     Listener
	closed bool
}

// Unsubscribe stops delivery. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.store == nil {
		return
	}
	s.store.remove(s)
}

// Store owns a FormModel and notifies subscribers of every value change.
// Events are delivered one at a time in emission order; a mutation made from
// inside a listener is queued and delivered after the current event.
type Store struct {
	mu          sync.Mutex
	model       *FormModel
	subs        []*Subscription
	queue       []Event
	dispatching bool
	closed      bool
}

// NewStore wraps m.
func NewStore(m *FormModel) *Store {
	return &Store{model: m}
}

// Model returns the underlying model. Callers mutating it directly bypass
// notifications.
func (s *Store) Model() *FormModel {
	return s.model
}

// Subscribe registers fn for future events.
func (s *Store) Subscribe(fn Listener) *Subscription {
	sub := &Subscription{store: s, fn: fn}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || fn == nil {
		sub.closed = true
		return sub
	}
	s.subs = append(s.subs, sub)
	return sub
}

func (s *Store) remove(target *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target.closed = true
	for i, sub := range s.subs {
		if sub == target {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// Get returns the value at path.
func (s *Store) Get(path string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.model.Get(path)
	if !ok {
		return nil, false
	}
	return deepCopy(v), true
}

// Snapshot returns a deep copy of the root values.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneValues(s.model.Value())
}

// Set writes value at path and notifies subscribers.
func (s *Store) Set(path string, value any) error {
	return s.mutate(path, func(m *FormModel) error {
		return m.Set(path, value)
	})
}

// Patch loads data with PatchForm semantics and emits a single event.
func (s *Store) Patch(data map[string]any) error {
	return s.mutate("", func(m *FormModel) error {
		m.PatchForm(data)
		return nil
	})
}

// Batch applies several mutations and emits one event.
func (s *Store) Batch(fn func(m *FormModel) error) error {
	return s.mutate("", fn)
}

// Update runs fn under the store lock without emitting an event. It is meant
// for state that is not part of the value tree, such as disabled flags.
func (s *Store) Update(fn func(m *FormModel)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.model)
}

// Close drops every subscriber. Later mutations fail with ErrStoreClosed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, sub := range s.subs {
		sub.closed = true
	}
	s.subs = nil
	s.queue = nil
}

func (s *Store) mutate(path string, fn func(m *FormModel) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrStoreClosed
	}
	if err := fn(s.model); err != nil {
		s.mu.Unlock()
		return err
	}
	s.queue = append(s.queue, Event{
		Path:     path,
		Values:   cloneValues(s.model.Value()),
		Revision: s.model.Revision(),
	})
	if s.dispatching {
		s.mu.Unlock()
		return nil
	}
	s.dispatching = true
	for len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		subs := append([]*Subscription(nil), s.subs...)
		s.mu.Unlock()
		for _, sub := range subs {
			if !s.active(sub) {
				continue
			}
			sub.fn(ev)
		}
		s.mu.Lock()
	}
	s.dispatching = false
	s.mu.Unlock()
	return nil
}

func (s *Store) active(sub *Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !sub.closed
}

func cloneValues(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = deepCopy(v)
	}
	return out
}

func deepCopy(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneValues(typed)
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = deepCopy(v)
		}
		return out
	default:
		return typed
	}
}
