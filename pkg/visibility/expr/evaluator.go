package expr

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/goliatone/go-dynform/pkg/visibility"
)

// Evaluator evaluates flat conjunctions of comparisons:
//
//	model.age > 18 && model.active == true
//	row.status != "closed"
//	model.countryId
//
// Operators are `== != >= <= > <`; `||` is not supported. Values are read from
// visibility.Context.Values with dot-path traversal and from Extras through
// the `extras.` prefix. Missing segments resolve to null.
type Evaluator struct {
	logger *slog.Logger
	cache  sync.Map // rule -> exprNode
}

// Option customises an Evaluator.
type Option func(*Evaluator)

// WithLogger routes the warnings emitted by Evaluate.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func New(opts ...Option) *Evaluator {
	e := &Evaluator{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Eval is the strict form: syntax problems are returned as *SyntaxError
// carrying fieldPath. An empty rule is true.
func (e *Evaluator) Eval(fieldPath, rule string, ctx visibility.Context) (bool, error) {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return true, nil
	}
	node, err := e.compile(trimmed)
	if err != nil {
		var syntax *SyntaxError
		if errors.As(err, &syntax) {
			syntax.Field = fieldPath
		}
		return false, err
	}
	return node.eval(ctx), nil
}

// Evaluate never fails: an empty rule is true and a broken rule is logged and
// evaluates to false.
func (e *Evaluator) Evaluate(rule string, ctx visibility.Context) bool {
	return visibility.Check(e, e.logger, "", rule, ctx)
}

func (e *Evaluator) compile(rule string) (exprNode, error) {
	if cached, ok := e.cache.Load(rule); ok {
		return cached.(exprNode), nil
	}
	node, err := parse(rule)
	if err != nil {
		return nil, err
	}
	e.cache.Store(rule, node)
	return node, nil
}

// SyntaxError reports a rule that cannot be parsed.
type SyntaxError struct {
	Field string
	Rule  string
	Msg   string
}

func (e *SyntaxError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("visibility/expr: %s in %q for field %q", e.Msg, e.Rule, e.Field)
	}
	return fmt.Sprintf("visibility/expr: %s in %q", e.Msg, e.Rule)
}

// Two-character operators come first so `>=` is never read as `>`.
var operators = []string{"==", "!=", ">=", "<=", ">", "<"}

func parse(rule string) (exprNode, error) {
	if strings.Contains(rule, "||") {
		return nil, &SyntaxError{Rule: rule, Msg: "'||' is not supported"}
	}

	parts := strings.Split(rule, "&&")
	conds := make(exprAnd, 0, len(parts))
	for _, part := range parts {
		cond := strings.TrimSpace(part)
		if cond == "" {
			return nil, &SyntaxError{Rule: rule, Msg: "empty condition"}
		}
		node, err := parseCondition(rule, cond)
		if err != nil {
			return nil, err
		}
		conds = append(conds, node)
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return conds, nil
}

func parseCondition(rule, cond string) (exprNode, error) {
	for _, op := range operators {
		left, right, found := strings.Cut(cond, op)
		if !found {
			continue
		}
		left = strings.TrimSpace(left)
		right = strings.TrimSpace(right)
		if left == "" || right == "" {
			return nil, &SyntaxError{Rule: rule, Msg: fmt.Sprintf("operator %q needs two operands", op)}
		}
		for _, side := range []string{left, right} {
			if strings.ContainsAny(side, "=<>!") && !isQuoted(side) {
				return nil, &SyntaxError{Rule: rule, Msg: fmt.Sprintf("unexpected operator in %q", side)}
			}
		}
		return exprCompare{
			left:  parseOperand(left),
			op:    op,
			right: parseLiteral(right),
		}, nil
	}
	if strings.ContainsAny(cond, "=!") {
		return nil, &SyntaxError{Rule: rule, Msg: fmt.Sprintf("malformed condition %q", cond)}
	}
	return exprTruthy{operand: parseOperand(cond)}, nil
}

type exprNode interface {
	eval(ctx visibility.Context) bool
}

type exprAnd []exprNode

func (n exprAnd) eval(ctx visibility.Context) bool {
	for _, cond := range n {
		if !cond.eval(ctx) {
			return false
		}
	}
	return true
}

type exprCompare struct {
	left  operand
	op    string
	right operand
}

func (n exprCompare) eval(ctx visibility.Context) bool {
	a := n.left.resolve(ctx)
	b := n.right.resolve(ctx)
	switch n.op {
	case "==":
		return looseEqual(a, b)
	case "!=":
		return !looseEqual(a, b)
	default:
		return relational(a, b, n.op)
	}
}

type exprTruthy struct {
	operand operand
}

func (n exprTruthy) eval(ctx visibility.Context) bool {
	return truthy(n.operand.resolve(ctx))
}

// operand is either a path into the context or a literal value.
type operand struct {
	path    string
	value   any
	literal bool
}

func (o operand) resolve(ctx visibility.Context) any {
	if o.literal {
		return o.value
	}
	v, _ := lookup(ctx, o.path)
	return v
}

// parseOperand reads the left side: keywords, numbers and quoted strings are
// literals, anything else is a path.
func parseOperand(raw string) operand {
	if lit, ok := keywordOrNumber(raw); ok {
		return lit
	}
	if isQuoted(raw) {
		return operand{literal: true, value: raw[1 : len(raw)-1]}
	}
	return operand{path: raw}
}

// parseLiteral reads the right side. Unquoted tokens that are neither
// keywords nor numbers stay as string literals.
func parseLiteral(raw string) operand {
	if lit, ok := keywordOrNumber(raw); ok {
		return lit
	}
	if isQuoted(raw) {
		return operand{literal: true, value: raw[1 : len(raw)-1]}
	}
	return operand{literal: true, value: raw}
}

func keywordOrNumber(raw string) (operand, bool) {
	switch raw {
	case "true":
		return operand{literal: true, value: true}, true
	case "false":
		return operand{literal: true, value: false}, true
	case "null", "undefined":
		return operand{literal: true, value: nil}, true
	}
	if looksLikeNumber(raw) {
		if f, ok := parseNumber(raw); ok {
			return operand{literal: true, value: f}, true
		}
	}
	return operand{}, false
}

func isQuoted(raw string) bool {
	if len(raw) < 2 {
		return false
	}
	first, last := raw[0], raw[len(raw)-1]
	return (first == '"' || first == '\'') && first == last
}

func looksLikeNumber(raw string) bool {
	if raw == "" {
		return false
	}
	ch := raw[0]
	return (ch >= '0' && ch <= '9') || ch == '-' || ch == '+' || ch == '.'
}
