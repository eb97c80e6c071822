package sqlsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrFormNotFound is returned when no schema document is stored under a code.
var ErrFormNotFound = errors.New("sqlsource: form not found")

// Forms stores raw form schema documents by code.
type Forms struct {
	db *sql.DB
}

// NewForms wraps db. The form_schema table must exist (see Migrate).
func NewForms(db *sql.DB) *Forms {
	return &Forms{db: db}
}

// Load returns the stored document for code.
func (f *Forms) Load(ctx context.Context, code string) ([]byte, error) {
	var doc string
	err := f.db.QueryRowContext(ctx, `SELECT document FROM form_schema WHERE code = ?`, code).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrFormNotFound, code)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlsource: load form %s: %w", code, err)
	}
	return []byte(doc), nil
}

// Save upserts the document for code.
func (f *Forms) Save(ctx context.Context, code string, document []byte) error {
	if code == "" {
		return errors.New("sqlsource: form code is required")
	}
	_, err := f.db.ExecContext(ctx,
		`INSERT INTO form_schema (code, document) VALUES (?, ?)
		 ON CONFLICT(code) DO UPDATE SET document = excluded.document`, code, string(document))
	if err != nil {
		return fmt.Errorf("sqlsource: save form %s: %w", code, err)
	}
	return nil
}
