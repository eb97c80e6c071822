package expr

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/goliatone/go-dynform/pkg/visibility"
)

func quiet() *Evaluator {
	return New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestEvaluateTruthTable(t *testing.T) {
	t.Parallel()

	eval := quiet()
	cases := []struct {
		name string
		rule string
		ctx  visibility.Context
		want bool
	}{
		{
			name: "relational",
			rule: "model.age > 18",
			ctx:  visibility.ModelContext(map[string]any{"age": float64(20)}),
			want: true,
		},
		{
			name: "conjunction short circuits",
			rule: "model.age > 18 && model.active == true",
			ctx:  visibility.ModelContext(map[string]any{"age": float64(15), "active": true}),
			want: false,
		},
		{
			name: "empty rule",
			rule: "",
			ctx:  visibility.Context{},
			want: true,
		},
		{
			name: "missing path",
			rule: "model.missing.path == 5",
			ctx:  visibility.ModelContext(map[string]any{}),
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := eval.Evaluate(tc.rule, tc.ctx); got != tc.want {
				t.Fatalf("Evaluate(%q) = %v, want %v", tc.rule, got, tc.want)
			}
		})
	}
}

func TestEvalOperators(t *testing.T) {
	t.Parallel()

	eval := quiet()
	ctx := visibility.ModelContext(map[string]any{
		"age":       20,
		"name":      "Ada",
		"countryId": "US",
		"active":    true,
		"count":     "3",
		"empty":     "",
		"tags":      []any{},
		"nested":    map[string]any{"level": float64(2)},
		"stateId":   nil,
	})

	cases := map[string]bool{
		"model.age >= 20":            true,
		"model.age <= 19":            false,
		"model.age < 21":             true,
		"model.age != 20":            false,
		"model.name == 'Ada'":        true,
		`model.name == "Ada"`:        true,
		"model.name == Ada":          true,
		"model.name > 'Aaa'":         true,
		"model.count == 3":           true,
		"model.count > 2":            true,
		"model.active == true":       true,
		"model.active == 1":          true,
		"model.active == 'true'":     false,
		"model.stateId == null":      true,
		"model.missing == null":      true,
		"model.empty == null":        false,
		"model.empty == 0":           true,
		"model.countryId":            true,
		"model.empty":                false,
		"model.tags":                 true,
		"model.tags == ''":           true,
		"model.nested.level == 2":    true,
		"model.countryId != null":    true,
		"model.missing > 1":          false,
		"model.age > 1 && model.age": true,
		"model.name > 5":             false,
	}
	for rule, want := range cases {
		got, err := eval.Eval("", rule, ctx)
		if err != nil {
			t.Fatalf("Eval(%q) returned error: %v", rule, err)
		}
		if got != want {
			t.Fatalf("Eval(%q) = %v, want %v", rule, got, want)
		}
	}
}

func TestEvalRowContext(t *testing.T) {
	t.Parallel()

	ok, err := quiet().Eval("", `row.status != "closed"`, visibility.RowContext(map[string]any{"status": "open"}))
	if err != nil || !ok {
		t.Fatalf("expected row rule to hold, got %v (%v)", ok, err)
	}
}

func TestEvalExtras(t *testing.T) {
	t.Parallel()

	ctx := visibility.Context{Extras: map[string]any{"role": "admin"}}
	ok, err := quiet().Eval("", "extras.role == admin", ctx)
	if err != nil || !ok {
		t.Fatalf("expected extras lookup to match, got %v (%v)", ok, err)
	}
}

func TestEvalSyntaxErrorsFailClosed(t *testing.T) {
	t.Parallel()

	eval := quiet()
	ctx := visibility.ModelContext(map[string]any{"a": true, "b": true})
	rules := []string{
		"model.a == true || model.b == true",
		"model.a == ",
		"== true",
		"model.a && ",
		"model.a = true",
		"model.a => 1",
	}
	for _, rule := range rules {
		_, err := eval.Eval("", rule, ctx)
		var syntax *SyntaxError
		if !errors.As(err, &syntax) {
			t.Fatalf("Eval(%q) expected SyntaxError, got %v", rule, err)
		}
		if eval.Evaluate(rule, ctx) {
			t.Fatalf("Evaluate(%q) expected to fail closed", rule)
		}
	}
}

func TestEvalSyntaxErrorNamesField(t *testing.T) {
	t.Parallel()

	eval := quiet()
	ctx := visibility.ModelContext(map[string]any{"a": true})
	for _, field := range []string{"address.state", "notes"} {
		_, err := eval.Eval(field, "model.a == ", ctx)
		var syntax *SyntaxError
		if !errors.As(err, &syntax) {
			t.Fatalf("expected SyntaxError, got %v", err)
		}
		if syntax.Field != field {
			t.Fatalf("expected field %q, got %q", field, syntax.Field)
		}
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("expected message to name %q, got %q", field, err.Error())
		}
	}

	_, err := eval.Eval("", "model.a == ", ctx)
	if strings.Contains(err.Error(), "for field") {
		t.Fatalf("expected no field in message, got %q", err.Error())
	}
}

func TestCheckHelper(t *testing.T) {
	t.Parallel()

	failing := visibility.EvaluatorFunc(func(string, string, visibility.Context) (bool, error) {
		return true, errors.New("boom")
	})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if visibility.Check(failing, logger, "f", "anything", visibility.Context{}) {
		t.Fatalf("expected evaluator errors to fail closed")
	}
	if !visibility.Check(failing, logger, "f", "  ", visibility.Context{}) {
		t.Fatalf("expected empty rule to be active")
	}
}
