package options

import (
	"context"
	"fmt"

	"github.com/goliatone/go-dynform/pkg/schema"
)

// MemorySource serves domain values from an in-memory catalog keyed by
// category. Entries keep their declared order.
type MemorySource struct {
	catalog map[string][]DomainValue
}

// NewMemorySource copies catalog.
func NewMemorySource(catalog map[string][]DomainValue) *MemorySource {
	out := make(map[string][]DomainValue, len(catalog))
	for category, values := range catalog {
		out[category] = cloneValues(values)
	}
	return &MemorySource{catalog: out}
}

// LoadCatalog parses a JSON or YAML document of the form
// `{CATEGORY: [{code, displayText, parentCode}]}`.
func LoadCatalog(data []byte) (*MemorySource, error) {
	var catalog map[string][]DomainValue
	if err := schema.Decode(data, &catalog); err != nil {
		return nil, fmt.Errorf("options: catalog: %w", err)
	}
	return NewMemorySource(catalog), nil
}

// Fetch returns the category's values, narrowed to parent when set.
func (m *MemorySource) Fetch(ctx context.Context, category, parent string) ([]DomainValue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	values := m.catalog[category]
	if parent == "" {
		return cloneValues(values), nil
	}
	out := make([]DomainValue, 0, len(values))
	for _, v := range values {
		if v.ParentCode == parent {
			out = append(out, v)
		}
	}
	return out, nil
}

// Categories lists the catalog's categories.
func (m *MemorySource) Categories() []string {
	out := make([]string, 0, len(m.catalog))
	for category := range m.catalog {
		out = append(out, category)
	}
	return out
}
