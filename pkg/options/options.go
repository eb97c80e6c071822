package options

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-dynform/pkg/schema"
)

// DomainValue is one entry of a domain-data list. ParentCode links it to an
// entry of the parent category (country → state) or to another entry of the
// same category when the list is a hierarchy.
type DomainValue struct {
	Code        string          `json:"code"`
	DisplayText string          `json:"displayText"`
	ParentCode  string          `json:"parentCode,omitempty"`
	Extension   json.RawMessage `json:"extension,omitempty"`
}

// UnmarshalJSON accepts numeric codes and null parent codes.
func (v *DomainValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		Code        any             `json:"code"`
		DisplayText string          `json:"displayText"`
		ParentCode  any             `json:"parentCode"`
		Extension   json.RawMessage `json:"extension"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("options: domain value: %w", err)
	}
	*v = DomainValue{
		Code:        scalarString(raw.Code),
		DisplayText: raw.DisplayText,
		ParentCode:  scalarString(raw.ParentCode),
	}
	if len(raw.Extension) > 0 && !bytes.Equal(bytes.TrimSpace(raw.Extension), []byte("null")) {
		v.Extension = raw.Extension
	}
	return nil
}

// Source fetches domain values for a category, optionally narrowed to the
// children of parent. Implementations must be safe for concurrent use.
type Source interface {
	Fetch(ctx context.Context, category, parent string) ([]DomainValue, error)
}

// SourceFunc adapts a function into a Source.
type SourceFunc func(ctx context.Context, category, parent string) ([]DomainValue, error)

// Fetch delegates to the underlying function.
func (fn SourceFunc) Fetch(ctx context.Context, category, parent string) ([]DomainValue, error) {
	return fn(ctx, category, parent)
}

// FetchError wraps a failed load with the key that was requested.
type FetchError struct {
	Category string
	Parent   string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Parent == "" {
		return fmt.Sprintf("options: fetch %s: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("options: fetch %s (parent %s): %v", e.Category, e.Parent, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// CacheKey is `category` or `category:parent`.
func CacheKey(category, parent string) string {
	if parent == "" {
		return category
	}
	return category + ":" + parent
}

// StaticOptions converts inline `{label, value}` options into domain values.
func StaticOptions(opts []schema.Option) []DomainValue {
	if len(opts) == 0 {
		return nil
	}
	out := make([]DomainValue, 0, len(opts))
	for _, opt := range opts {
		out = append(out, DomainValue{Code: scalarString(opt.Value), DisplayText: opt.Label})
	}
	return out
}

// Contains reports whether values has an entry whose code matches the
// string form of selected.
func Contains(values []DomainValue, selected any) bool {
	code := scalarString(selected)
	for _, v := range values {
		if v.Code == code {
			return true
		}
	}
	return false
}

func scalarString(v any) string {
	switch typed := v.(type) {
	case nil:
		return ""
	case string:
		return typed
	case json.Number:
		return typed.String()
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(typed)
	default:
		return strings.TrimSpace(fmt.Sprint(typed))
	}
}

func cloneValues(in []DomainValue) []DomainValue {
	if in == nil {
		return nil
	}
	return append([]DomainValue(nil), in...)
}
