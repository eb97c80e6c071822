package sqlsource

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"

	"github.com/goliatone/go-dynform/pkg/options"
)

const defaultTable = "domain_data"

// Schema creates the tables read by Source and Forms.
const Schema = `
CREATE TABLE IF NOT EXISTS domain_data (
	category_code  TEXT    NOT NULL,
	code           TEXT    NOT NULL,
	display_text   TEXT    NOT NULL DEFAULT '',
	parent_code    TEXT,
	extension_json TEXT,
	sort_order     INTEGER NOT NULL DEFAULT 0,
	is_active      INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (category_code, code, parent_code)
);
CREATE INDEX IF NOT EXISTS domain_data_parent ON domain_data (category_code, parent_code);
CREATE TABLE IF NOT EXISTS form_schema (
	code     TEXT PRIMARY KEY,
	document TEXT NOT NULL
);
`

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Option customises a Source.
type Option func(*Source)

// WithTable reads from a table other than domain_data.
func WithTable(name string) Option {
	return func(s *Source) {
		if name != "" {
			s.table = name
		}
	}
}

// WithLogger routes query diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Source reads active domain values ordered by sort_order.
type Source struct {
	db     *sql.DB
	table  string
	logger *slog.Logger
	query  string
}

var _ options.Source = (*Source)(nil)

// New wraps db.
func New(db *sql.DB, opts ...Option) (*Source, error) {
	if db == nil {
		return nil, errors.New("sqlsource: db is nil")
	}
	s := &Source{db: db, table: defaultTable, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if !identPattern.MatchString(s.table) {
		return nil, fmt.Errorf("sqlsource: invalid table name %q", s.table)
	}
	s.query = `SELECT code, display_text, parent_code, extension_json FROM ` + s.table +
		` WHERE category_code = ? AND is_active = 1 AND (? IS NULL OR parent_code = ?) ORDER BY sort_order`
	return s, nil
}

// Fetch implements options.Source. An empty parent returns the whole
// category.
func (s *Source) Fetch(ctx context.Context, category, parent string) ([]options.DomainValue, error) {
	if category == "" {
		return nil, errors.New("sqlsource: category is required")
	}
	parentArg := sql.NullString{String: parent, Valid: parent != ""}

	rows, err := s.db.QueryContext(ctx, s.query, category, parentArg, parentArg)
	if err != nil {
		return nil, fmt.Errorf("sqlsource: query %s: %w", category, err)
	}
	defer rows.Close()

	values := []options.DomainValue{}
	for rows.Next() {
		var (
			code, display      string
			parentCode, extRaw sql.NullString
		)
		if err := rows.Scan(&code, &display, &parentCode, &extRaw); err != nil {
			return nil, fmt.Errorf("sqlsource: scan %s: %w", category, err)
		}
		v := options.DomainValue{Code: code, DisplayText: display, ParentCode: parentCode.String}
		if extRaw.Valid && extRaw.String != "" {
			if json.Valid([]byte(extRaw.String)) {
				v.Extension = json.RawMessage(extRaw.String)
			} else {
				s.logger.Warn("sqlsource: invalid extension json", "category", category, "code", code)
			}
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlsource: rows %s: %w", category, err)
	}
	return values, nil
}

// Migrate creates the tables if they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("sqlsource: migrate: %w", err)
	}
	return nil
}

// Seed inserts a catalog into domain_data inside one transaction. Values keep
// their position as sort_order.
func Seed(ctx context.Context, db *sql.DB, catalog map[string][]options.DomainValue) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlsource: seed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO domain_data
		(category_code, code, display_text, parent_code, extension_json, sort_order, is_active)
		VALUES (?, ?, ?, ?, ?, ?, 1)`)
	if err != nil {
		return fmt.Errorf("sqlsource: seed: %w", err)
	}
	defer stmt.Close()

	categories := make([]string, 0, len(catalog))
	for category := range catalog {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for i, v := range catalog[category] {
			parent := sql.NullString{String: v.ParentCode, Valid: v.ParentCode != ""}
			ext := sql.NullString{String: string(v.Extension), Valid: len(v.Extension) > 0}
			if _, err = stmt.ExecContext(ctx, category, v.Code, v.DisplayText, parent, ext, i); err != nil {
				return fmt.Errorf("sqlsource: seed %s/%s: %w", category, v.Code, err)
			}
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlsource: seed: %w", err)
	}
	return nil
}
