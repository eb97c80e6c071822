package sqlsource

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-dynform/pkg/options"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(context.Background(), db))
	return db
}

func seeded(t *testing.T) *sql.DB {
	t.Helper()
	db := openDB(t)
	require.NoError(t, Seed(context.Background(), db, map[string][]options.DomainValue{
		"COUNTRY": {
			{Code: "CA", DisplayText: "Canada", Extension: json.RawMessage(`{"iso3":"CAN"}`)},
			{Code: "US", DisplayText: "United States"},
		},
		"STATE": {
			{Code: "ON", DisplayText: "Ontario", ParentCode: "CA"},
			{Code: "QC", DisplayText: "Quebec", ParentCode: "CA"},
			{Code: "NY", DisplayText: "New York", ParentCode: "US"},
		},
	}))
	return db
}

func codes(values []options.DomainValue) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.Code)
	}
	return out
}

func TestFetchWholeCategory(t *testing.T) {
	t.Parallel()

	src, err := New(seeded(t))
	require.NoError(t, err)

	values, err := src.Fetch(context.Background(), "COUNTRY", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"CA", "US"}, codes(values))
	assert.JSONEq(t, `{"iso3":"CAN"}`, string(values[0].Extension))
	assert.Nil(t, values[1].Extension)
	assert.Empty(t, values[0].ParentCode)
}

func TestFetchByParent(t *testing.T) {
	t.Parallel()

	src, err := New(seeded(t))
	require.NoError(t, err)

	values, err := src.Fetch(context.Background(), "STATE", "CA")
	require.NoError(t, err)
	assert.Equal(t, []string{"ON", "QC"}, codes(values))

	values, err = src.Fetch(context.Background(), "STATE", "MX")
	require.NoError(t, err)
	assert.NotNil(t, values)
	assert.Empty(t, values)
}

func TestFetchSkipsInactiveRows(t *testing.T) {
	t.Parallel()

	db := seeded(t)
	_, err := db.Exec(`UPDATE domain_data SET is_active = 0 WHERE code = 'QC'`)
	require.NoError(t, err)

	src, err := New(db)
	require.NoError(t, err)
	values, err := src.Fetch(context.Background(), "STATE", "CA")
	require.NoError(t, err)
	assert.Equal(t, []string{"ON"}, codes(values))
}

func TestNewRejectsUnsafeTable(t *testing.T) {
	t.Parallel()

	_, err := New(openDB(t), WithTable("domain_data; DROP TABLE x"))
	require.Error(t, err)
	_, err = New(nil)
	require.Error(t, err)
}

func TestFormsRoundTrip(t *testing.T) {
	t.Parallel()

	forms := NewForms(openDB(t))
	ctx := context.Background()

	_, err := forms.Load(ctx, "EMP")
	require.ErrorIs(t, err, ErrFormNotFound)

	require.NoError(t, forms.Save(ctx, "EMP", []byte(`{"code":"EMP","sections":[]}`)))
	require.NoError(t, forms.Save(ctx, "EMP", []byte(`{"code":"EMP","version":"2","sections":[]}`)))
	doc, err := forms.Load(ctx, "EMP")
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"EMP","version":"2","sections":[]}`, string(doc))
}
