package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-dynform/pkg/model"
	"github.com/goliatone/go-dynform/pkg/options"
	"github.com/goliatone/go-dynform/pkg/rowview"
	"github.com/goliatone/go-dynform/pkg/schema"
	"github.com/goliatone/go-dynform/pkg/tree"
	"github.com/goliatone/go-dynform/pkg/visibility"
)

// Instance is one compiled, live form. Every subscription it owns is
// released by Close.
type Instance struct {
	ID       uuid.UUID
	Schema   schema.FormSchema
	Model    *model.FormModel
	Store    *model.Store
	Watcher  *visibility.Watcher
	Cascades map[string]*options.Cascade

	evaluator visibility.Evaluator
	logger    *slog.Logger
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Cascade returns the option cascade bound to key.
func (i *Instance) Cascade(key string) (*options.Cascade, bool) {
	c, ok := i.Cascades[key]
	return c, ok
}

// Table builds a row view over the table registered under key. Row
// mutations go through the instance store.
func (i *Instance) Table(key string) (*rowview.View, error) {
	rows, ok := i.Model.RowSet(key)
	if !ok {
		return nil, fmt.Errorf("%w: table %q", model.ErrControlNotFound, key)
	}
	return rowview.New(rows, rowview.ConfigFrom(rows.Definition()),
		rowview.WithStore(i.Store),
		rowview.WithEvaluator(i.evaluator),
		rowview.WithLogger(i.logger),
	), nil
}

// Tree builds the hierarchy of a tree control from its current options and
// selects the current value.
func (i *Instance) Tree(key string) (*tree.Forest, error) {
	c, ok := i.Cascades[key]
	if !ok {
		return nil, fmt.Errorf("%w: tree %q", model.ErrControlNotFound, key)
	}
	forest := tree.Build(c.Options())
	if path, ok := i.Model.GetDataPath(key); ok {
		if value, ok := i.Store.Get(path); ok && value != nil {
			forest.Select(fmt.Sprint(value))
		}
	}
	return forest, nil
}

// Wait blocks until every outstanding option load has landed.
func (i *Instance) Wait() {
	for _, c := range i.Cascades {
		c.Wait()
	}
}

// Values returns a snapshot of the form values.
func (i *Instance) Values() map[string]any {
	return i.Store.Snapshot()
}

// Validate returns the failing rules per field path.
func (i *Instance) Validate() map[string][]string {
	var out map[string][]string
	i.Store.Update(func(m *model.FormModel) {
		out = m.Validate()
	})
	return out
}

// Close cancels option loads and drops every subscription.
func (i *Instance) Close() {
	i.closeOnce.Do(func() {
		for _, c := range i.Cascades {
			c.Close()
		}
		if i.Watcher != nil {
			i.Watcher.Close()
		}
		if i.cancel != nil {
			i.cancel()
		}
		i.Store.Close()
	})
}
