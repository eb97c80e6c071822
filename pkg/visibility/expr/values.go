package expr

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goliatone/go-dynform/pkg/visibility"
)

func lookup(ctx visibility.Context, key string) (any, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	if strings.HasPrefix(strings.ToLower(key), "extras.") {
		return lookupMap(ctx.Extras, strings.TrimSpace(key[len("extras."):]))
	}
	return lookupMap(ctx.Values, key)
}

func lookupMap(values map[string]any, path string) (any, bool) {
	if len(values) == 0 || path == "" {
		return nil, false
	}
	if v, ok := values[path]; ok {
		return v, true
	}

	var current any = values
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, false
		}
		switch typed := current.(type) {
		case map[string]any:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case map[string]string:
			next, ok := typed[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(typed) {
				return nil, false
			}
			current = typed[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

// truthy follows JavaScript rules: empty collections are truthy.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	default:
		if f, ok := asNumber(v); ok {
			return f != 0 && !math.IsNaN(f)
		}
		return true
	}
}

// looseEqual mirrors JavaScript `==` for JSON-shaped values.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if ab, ok := a.(bool); ok {
		return looseEqual(boolNumber(ab), b)
	}
	if bb, ok := b.(bool); ok {
		return looseEqual(a, boolNumber(bb))
	}

	an, aNum := asNumber(a)
	bn, bNum := asNumber(b)
	as, aStr := a.(string)
	bs, bStr := b.(string)

	switch {
	case aNum && bNum:
		return an == bn
	case aStr && bStr:
		return as == bs
	case aNum && bStr:
		f, ok := stringNumber(bs)
		return ok && an == f
	case aStr && bNum:
		f, ok := stringNumber(as)
		return ok && f == bn
	}

	aColl, bColl := isCollection(a), isCollection(b)
	switch {
	case aColl && bColl:
		return false
	case aColl || bColl:
		// Collections compare through their primitive string form.
		return looseEqual(primitive(a), primitive(b))
	default:
		return fmt.Sprint(a) == fmt.Sprint(b)
	}
}

func isCollection(v any) bool {
	switch v.(type) {
	case []any, map[string]any, map[string]string:
		return true
	default:
		return false
	}
}

// relational mirrors JavaScript `< > <= >=`: strings compare lexically when
// both sides are strings, otherwise both sides convert to numbers.
func relational(a, b any, op string) bool {
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		switch op {
		case ">":
			return as > bs
		case "<":
			return as < bs
		case ">=":
			return as >= bs
		case "<=":
			return as <= bs
		}
		return false
	}

	x, okA := toNumber(a)
	y, okB := toNumber(b)
	if !okA || !okB {
		return false
	}
	switch op {
	case ">":
		return x > y
	case "<":
		return x < y
	case ">=":
		return x >= y
	case "<=":
		return x <= y
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch typed := v.(type) {
	case nil:
		return 0, true
	case bool:
		return boolNumber(typed), true
	case string:
		return stringNumber(typed)
	}
	if f, ok := asNumber(v); ok {
		return f, !math.IsNaN(f)
	}
	return 0, false
}

func asNumber(v any) (float64, bool) {
	switch typed := v.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	default:
		return 0, false
	}
}

// stringNumber applies Number(): blank strings are zero.
func stringNumber(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, true
	}
	return parseNumber(trimmed)
}

func parseNumber(raw string) (float64, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func primitive(v any) any {
	switch typed := v.(type) {
	case []any:
		parts := make([]string, len(typed))
		for i, item := range typed {
			if item == nil {
				continue
			}
			parts[i] = fmt.Sprint(primitive(item))
		}
		return strings.Join(parts, ",")
	case map[string]any, map[string]string:
		return "[object Object]"
	default:
		return v
	}
}
