package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/goliatone/go-dynform/pkg/options/sqlsource"
	"github.com/goliatone/go-dynform/pkg/schema"
)

// formStore returns raw schema documents by form code.
type formStore interface {
	Load(ctx context.Context, code string) ([]byte, error)
}

// fsForms indexes every JSON/YAML document under dir of fsys by its code.
type fsForms struct {
	docs map[string][]byte
}

func newFSForms(fsys fs.FS, dir string) (*fsForms, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("formc: read forms: %w", err)
	}
	out := &fsForms{docs: make(map[string][]byte)}
	for _, entry := range entries {
		if entry.IsDir() || !isDocument(entry.Name()) {
			continue
		}
		name := path.Join(dir, entry.Name())
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("formc: read %s: %w", name, err)
		}
		form, err := schema.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("formc: parse %s: %w", name, err)
		}
		code := form.Code
		if code == "" {
			code = strings.TrimSuffix(entry.Name(), path.Ext(entry.Name()))
		}
		if _, dup := out.docs[code]; dup {
			logger.Warn("formc: duplicate form code, keeping the first", "code", code, "file", name)
			continue
		}
		out.docs[code] = raw
	}
	return out, nil
}

func (f *fsForms) Load(ctx context.Context, code string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, ok := f.docs[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", sqlsource.ErrFormNotFound, code)
	}
	return raw, nil
}

// Codes lists the indexed form codes.
func (f *fsForms) Codes() []string {
	out := make([]string, 0, len(f.docs))
	for code := range f.docs {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func isDocument(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func isNotFound(err error) bool {
	return errors.Is(err, sqlsource.ErrFormNotFound) || errors.Is(err, fs.ErrNotExist)
}
