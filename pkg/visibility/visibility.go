package visibility

import (
	"log/slog"
	"strings"
)

// Evaluator decides whether a gating rule (visibleWhen, disabledWhen,
// requiredWhen, action visibleWhen) holds for the given context.
type Evaluator interface {
	Eval(fieldPath, rule string, ctx Context) (bool, error)
}

// Context is the object rules are evaluated against. Values is the root
// object, usually `{model: <form values>}` or `{row: <row values>}`. Extras
// is reachable through the `extras.` prefix for caller-provided flags.
type Context struct {
	Values map[string]any
	Extras map[string]any
}

// ModelContext exposes the form values under `model`.
func ModelContext(values map[string]any) Context {
	return Context{Values: map[string]any{"model": values}}
}

// RowContext exposes a table row under `row`.
func RowContext(row map[string]any) Context {
	return Context{Values: map[string]any{"row": row}}
}

// EvaluatorFunc adapts a function into an Evaluator.
type EvaluatorFunc func(fieldPath, rule string, ctx Context) (bool, error)

// Eval delegates to the underlying function.
func (fn EvaluatorFunc) Eval(fieldPath, rule string, ctx Context) (bool, error) {
	return fn(fieldPath, rule, ctx)
}

// Check runs ev and fails closed: an empty rule is always active, and any
// evaluation error is logged and treated as false.
func Check(ev Evaluator, logger *slog.Logger, fieldPath, rule string, ctx Context) bool {
	if strings.TrimSpace(rule) == "" {
		return true
	}
	if ev == nil {
		return false
	}
	ok, err := ev.Eval(fieldPath, rule, ctx)
	if err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("visibility: rule evaluation failed", "field", fieldPath, "rule", rule, "error", err)
		return false
	}
	return ok
}
