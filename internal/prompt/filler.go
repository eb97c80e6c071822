// Package prompt fills a compiled form interactively. Fields are asked in
// schema order; hidden and disabled fields are skipped, and option lists are
// read after every answer so cascades narrow as the user goes.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/goliatone/go-dynform/pkg/model"
	"github.com/goliatone/go-dynform/pkg/options"
	"github.com/goliatone/go-dynform/pkg/orchestrator"
	"github.com/goliatone/go-dynform/pkg/schema"
)

const noneOption = "(none)"

// Option configures a Filler.
type Option func(*Filler)

// WithDriver overrides the prompt driver.
func WithDriver(driver Driver) Option {
	return func(f *Filler) {
		if driver != nil {
			f.driver = driver
		}
	}
}

// WithPageSize caps how many options a select shows at once.
func WithPageSize(size int) Option {
	return func(f *Filler) {
		if size > 0 {
			f.pageSize = size
		}
	}
}

// WithLogger routes debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filler) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// Filler walks a form instance and writes each answer to its store.
type Filler struct {
	driver   Driver
	pageSize int
	logger   *slog.Logger
}

// New builds a Filler. Without WithDriver it prompts on the terminal.
func New(opts ...Option) *Filler {
	f := &Filler{pageSize: 10, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if f.driver == nil {
		f.driver = NewSurveyDriver()
	}
	return f
}

// Fill prompts for every visible, enabled field of inst.
func (f *Filler) Fill(ctx context.Context, inst *orchestrator.Instance) error {
	if inst == nil {
		return errors.New("prompt: instance is nil")
	}
	if inst.Schema.Label != "" {
		if err := f.driver.Info(ctx, inst.Schema.Label); err != nil {
			return err
		}
	}
	return f.fillGroup(ctx, inst, inst.Model.Root())
}

func (f *Filler) fillGroup(ctx context.Context, inst *orchestrator.Instance, g *model.Group) error {
	for _, child := range g.Children() {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch node := child.(type) {
		case *model.Group:
			if !f.visible(inst, node.Key()) {
				continue
			}
			if label := node.Definition().Label; label != "" {
				if err := f.driver.Info(ctx, "== "+label+" =="); err != nil {
					return err
				}
			}
			if err := f.fillGroup(ctx, inst, node); err != nil {
				return err
			}
		case *model.RowSet:
			if !f.visible(inst, node.Key()) {
				continue
			}
			msg := fmt.Sprintf("%s: %d row(s), edit rows with the table view", labelOf(node.Definition()), node.Len())
			if err := f.driver.Info(ctx, msg); err != nil {
				return err
			}
		case *model.Field:
			if err := f.fillField(ctx, inst, node); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Filler) visible(inst *orchestrator.Instance, key string) bool {
	if key == "" {
		return true
	}
	st, ok := inst.Watcher.State(key)
	return !ok || st.Visible
}

func (f *Filler) fillField(ctx context.Context, inst *orchestrator.Instance, field *model.Field) error {
	key := field.Key()
	st, ok := inst.Watcher.State(key)
	if (ok && (!st.Visible || st.Disabled)) || field.Disabled() {
		f.logger.Debug("prompt: skipping field", "key", key, "visible", st.Visible, "disabled", true)
		return nil
	}
	def := field.Definition()
	if schema.BoolValue(def.Readonly) {
		return nil
	}
	required := field.Required() || st.Required
	current, _ := inst.Store.Get(field.Path())

	var (
		value any
		err   error
	)
	switch def.NormalizedType() {
	case schema.TypeCheckbox:
		var yes bool
		yes, err = f.driver.Confirm(ctx, ConfirmConfig{
			Message: labelOf(def),
			Default: current == true,
			Help:    def.Placeholder,
		})
		value = yes
	case schema.TypeSelect, schema.TypeTree:
		value, err = f.choose(ctx, inst, field, required, current)
	case schema.TypeNumber:
		value, err = f.number(ctx, def, required, current)
	default:
		value, err = f.text(ctx, def, required, current)
	}
	if err != nil {
		return err
	}
	if err := inst.Store.Set(field.Path(), value); err != nil {
		return fmt.Errorf("prompt: set %q: %w", key, err)
	}
	inst.Wait()
	return nil
}

func (f *Filler) choose(ctx context.Context, inst *orchestrator.Instance, field *model.Field, required bool, current any) (any, error) {
	def := field.Definition()
	var values []options.DomainValue
	if c, ok := inst.Cascade(field.Key()); ok {
		values = c.Options()
	} else {
		values = options.StaticOptions(def.Options)
	}
	if len(values) == 0 {
		if required {
			return nil, fmt.Errorf("%w: %s", ErrNoOptions, field.Key())
		}
		return nil, nil
	}

	labels := make([]string, 0, len(values)+1)
	if !required {
		labels = append(labels, noneOption)
	}
	offset := len(labels)
	selected := 0
	for i, v := range values {
		labels = append(labels, displayOf(v))
		if current != nil && v.Code == fmt.Sprint(current) {
			selected = i + offset
		}
	}

	idx, err := f.driver.Select(ctx, SelectConfig{
		Message:      labelOf(def),
		Options:      labels,
		DefaultIndex: selected,
		PageSize:     f.pageSize,
	})
	if err != nil {
		return nil, err
	}
	if idx < offset || idx >= len(labels) {
		return nil, nil
	}
	return values[idx-offset].Code, nil
}

func (f *Filler) number(ctx context.Context, def schema.ControlDefinition, required bool, current any) (any, error) {
	raw, err := f.driver.Input(ctx, InputConfig{
		Message: labelOf(def),
		Default: defaultText(current),
		Help:    def.Placeholder,
		Validator: func(s string) error {
			s = strings.TrimSpace(s)
			if s == "" {
				if required {
					return errors.New("value is required")
				}
				return nil
			}
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				return errors.New("enter a number")
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("prompt: %s: %w", def.Key, err)
	}
	return n, nil
}

func (f *Filler) text(ctx context.Context, def schema.ControlDefinition, required bool, current any) (any, error) {
	raw, err := f.driver.Input(ctx, InputConfig{
		Message: labelOf(def),
		Default: defaultText(current),
		Help:    def.Placeholder,
		Validator: func(s string) error {
			if required && strings.TrimSpace(s) == "" {
				return errors.New("value is required")
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return raw, nil
}

func labelOf(def schema.ControlDefinition) string {
	if def.Label != "" {
		return def.Label
	}
	return def.Key
}

func displayOf(v options.DomainValue) string {
	if v.DisplayText == "" || v.DisplayText == v.Code {
		return v.Code
	}
	return v.DisplayText + " (" + v.Code + ")"
}

func defaultText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
