package model

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-dynform/pkg/schema"
)

// Rule names, matching the error keys reported by Field.Errors.
const (
	RuleRequired  = "required"
	RuleMinLength = "minlength"
	RuleMaxLength = "maxlength"
	RuleMin       = "min"
	RuleMax       = "max"
	RulePattern   = "pattern"
	RuleEmail     = "email"
)

// Rule is one derived validation constraint.
type Rule struct {
	Name  string
	Param string
}

var fieldValidate = validator.New()

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

// DeriveRules collects constraints from both the direct properties and the
// legacy `validators` object. Both sources apply; identical rules collapse.
func DeriveRules(def schema.ControlDefinition) []Rule {
	var rules []Rule
	add := func(name, param string) {
		for _, existing := range rules {
			if existing.Name == name && existing.Param == param {
				return
			}
		}
		rules = append(rules, Rule{Name: name, Param: param})
	}

	if schema.BoolValue(def.Required) {
		add(RuleRequired, "")
	}
	if def.MinLength != nil {
		add(RuleMinLength, strconv.Itoa(*def.MinLength))
	}
	if def.MaxLength != nil {
		add(RuleMaxLength, strconv.Itoa(*def.MaxLength))
	}
	if def.Min != nil {
		add(RuleMin, formatNumber(*def.Min))
	}
	if def.Max != nil {
		add(RuleMax, formatNumber(*def.Max))
	}
	if def.Pattern != "" {
		add(RulePattern, def.Pattern)
	}
	if schema.BoolValue(def.Email) {
		add(RuleEmail, "")
	}

	legacy := def.Validators
	if truthyFlag(legacy["required"]) {
		add(RuleRequired, "")
	}
	if n, ok := legacyInt(legacy["minLength"]); ok {
		add(RuleMinLength, strconv.Itoa(n))
	}
	if n, ok := legacyInt(legacy["maxLength"]); ok {
		add(RuleMaxLength, strconv.Itoa(n))
	}
	if f, ok := legacyNumber(legacy["min"]); ok {
		add(RuleMin, formatNumber(f))
	}
	if f, ok := legacyNumber(legacy["max"]); ok {
		add(RuleMax, formatNumber(f))
	}
	if p, ok := legacy["pattern"].(string); ok && p != "" {
		add(RulePattern, p)
	}
	if truthyFlag(legacy["email"]) {
		add(RuleEmail, "")
	}
	return rules
}

// ValidationError lists the rules a field currently fails.
type ValidationError struct {
	Path   string
	Failed []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("model: %s failed %s", e.Path, strings.Join(e.Failed, ", "))
}

// Validate checks the current value against the field's rules. Disabled
// fields are always valid.
func (f *Field) Validate() error {
	failed := f.Errors()
	if len(failed) == 0 {
		return nil
	}
	return &ValidationError{Path: f.path, Failed: failed}
}

// Valid reports whether Validate would succeed.
func (f *Field) Valid() bool {
	return len(f.Errors()) == 0
}

// Errors returns the names of failing rules in declaration order.
func (f *Field) Errors() []string {
	if f.disabled {
		return nil
	}
	var failed []string
	seen := map[string]bool{}
	fail := func(name string) {
		if !seen[name] {
			seen[name] = true
			failed = append(failed, name)
		}
	}

	empty := isEmptyValue(f.value)
	if f.dynamicRequired && empty {
		fail(RuleRequired)
	}
	for _, rule := range f.rules {
		if rule.Name == RuleRequired {
			if empty {
				fail(RuleRequired)
			}
			continue
		}
		// Every other rule only applies to non-empty input.
		if empty {
			continue
		}
		if !checkRule(rule, f.value) {
			fail(rule.Name)
		}
	}
	return failed
}

func checkRule(rule Rule, value any) bool {
	switch rule.Name {
	case RuleMinLength, RuleMaxLength:
		length, ok := valueLength(value)
		if !ok {
			return true
		}
		tag := "min="
		if rule.Name == RuleMaxLength {
			tag = "max="
		}
		return fieldValidate.Var(length, tag+rule.Param) == nil
	case RuleMin, RuleMax:
		n, ok := numericValue(value)
		if !ok {
			return true
		}
		tag := "gte="
		if rule.Name == RuleMax {
			tag = "lte="
		}
		return fieldValidate.Var(n, tag+rule.Param) == nil
	case RuleEmail:
		s, ok := value.(string)
		if !ok {
			return false
		}
		return fieldValidate.Var(s, "email") == nil
	case RulePattern:
		re, err := compilePattern(rule.Param)
		if err != nil {
			return false
		}
		return re.MatchString(fmt.Sprint(value))
	default:
		return true
	}
}

// compilePattern anchors string patterns to the whole value.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[pattern]; ok {
		return re, nil
	}
	anchored := pattern
	if !strings.HasPrefix(anchored, "^") {
		anchored = "^" + anchored
	}
	if !strings.HasSuffix(anchored, "$") {
		anchored += "$"
	}
	re, err := regexp.Compile(anchored)
	if err != nil {
		return nil, fmt.Errorf("model: invalid pattern %q: %w", pattern, err)
	}
	patternCache[pattern] = re
	return re, nil
}

func isEmptyValue(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	case []any:
		return len(typed) == 0
	default:
		return false
	}
}

func valueLength(v any) (int, bool) {
	switch typed := v.(type) {
	case string:
		return utf8.RuneCountInString(typed), true
	case []any:
		return len(typed), true
	default:
		return 0, false
	}
}

func numericValue(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, !math.IsNaN(typed)
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func truthyFlag(v any) bool {
	switch typed := v.(type) {
	case bool:
		return typed
	case string:
		return strings.EqualFold(typed, "true")
	default:
		return false
	}
}

func legacyNumber(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if _, isBool := v.(bool); isBool {
		return 0, false
	}
	return numericValue(v)
}

func legacyInt(v any) (int, bool) {
	f, ok := legacyNumber(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
