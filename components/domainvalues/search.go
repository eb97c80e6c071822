package domainvalues

import (
	"sort"
	"strings"

	"github.com/goliatone/go-dynform/pkg/options"
)

// Search keeps values whose display text or code contains query
// (case-insensitive). Prefix matches come first; otherwise the source order
// is kept. An empty query keeps everything up to limit.
func Search(values []options.DomainValue, query string, limit int, opts Options) []options.DomainValue {
	limit = clampLimit(limit, opts)
	if limit == 0 {
		return nil
	}

	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		if len(values) > limit {
			values = values[:limit]
		}
		return append([]options.DomainValue{}, values...)
	}

	matches := make([]matchedValue, 0, 32)
	for _, v := range values {
		text := strings.ToLower(v.DisplayText)
		code := strings.ToLower(v.Code)
		if !strings.Contains(text, q) && !strings.Contains(code, q) {
			continue
		}
		matches = append(matches, matchedValue{
			value:    v,
			isPrefix: strings.HasPrefix(text, q) || strings.HasPrefix(code, q),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].isPrefix && !matches[j].isPrefix
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]options.DomainValue, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.value)
	}
	return out
}

type matchedValue struct {
	value    options.DomainValue
	isPrefix bool
}
