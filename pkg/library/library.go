package library

import (
	_ "embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-dynform/pkg/schema"
)

//go:embed defaults.yaml
var defaultsDocument []byte

var (
	defaultOnce sync.Once
	defaultLib  *Library
)

// Library maps symbolic keys ("employee.email") to base control definitions.
// It is immutable after construction; lookups hand out deep copies.
type Library struct {
	entries map[string]schema.ControlDefinition
}

type document struct {
	Controls map[string]schema.ControlDefinition `json:"controls"`
}

// New builds a library from the supplied entries. Blank keys are ignored.
func New(entries map[string]schema.ControlDefinition) *Library {
	lib := &Library{entries: make(map[string]schema.ControlDefinition, len(entries))}
	for key, def := range entries {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		lib.entries[trimmed] = def.Clone()
	}
	return lib
}

// Default returns the built-in business control library.
func Default() *Library {
	defaultOnce.Do(func() {
		lib, err := Load(defaultsDocument)
		if err != nil {
			panic(fmt.Sprintf("library: embedded defaults: %v", err))
		}
		defaultLib = lib
	})
	return defaultLib
}

// Load parses a JSON or YAML library document of the form
// `{controls: {key: ControlDefinition}}`.
func Load(data []byte) (*Library, error) {
	var doc document
	if err := schema.Decode(data, &doc); err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	if doc.Controls == nil {
		return nil, fmt.Errorf("library: document has no controls")
	}
	return New(doc.Controls), nil
}

// LoadFS reads and parses a library document from fsys.
func LoadFS(fsys fs.FS, name string) (*Library, error) {
	if fsys == nil {
		return nil, fmt.Errorf("library: fs is nil")
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("library: read %s: %w", name, err)
	}
	return Load(data)
}

// Merge layers libraries left to right; later entries replace earlier ones
// with the same key.
func Merge(libs ...*Library) *Library {
	out := &Library{entries: make(map[string]schema.ControlDefinition)}
	for _, lib := range libs {
		if lib == nil {
			continue
		}
		for key, def := range lib.entries {
			out.entries[key] = def
		}
	}
	return out
}

// Lookup returns a copy of the entry registered under key.
func (l *Library) Lookup(key string) (schema.ControlDefinition, bool) {
	if l == nil || key == "" {
		return schema.ControlDefinition{}, false
	}
	def, ok := l.entries[key]
	if !ok {
		return schema.ControlDefinition{}, false
	}
	return def.Clone(), true
}

// Has reports whether key is registered.
func (l *Library) Has(key string) bool {
	if l == nil {
		return false
	}
	_, ok := l.entries[key]
	return ok
}

// Keys lists registered keys in sorted order.
func (l *Library) Keys() []string {
	if l == nil {
		return nil
	}
	keys := make([]string, 0, len(l.entries))
	for key := range l.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}
