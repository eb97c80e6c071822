package rowview

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-dynform/pkg/model"
	"github.com/goliatone/go-dynform/pkg/schema"
	"github.com/goliatone/go-dynform/pkg/visibility"
)

const (
	// DefaultPageSize applies when pagination is enabled without a size.
	DefaultPageSize = 10
	// DefaultMaxInlineActions is how many row actions render inline before
	// the rest collapse into an overflow menu.
	DefaultMaxInlineActions = 3
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Config is the table behaviour taken from the control definition.
type Config struct {
	Searchable       bool
	Sortable         bool
	Paginated        bool
	PageSize         int
	MaxInlineActions int
}

// ConfigFrom reads the table flags of def.
func ConfigFrom(def schema.ControlDefinition) Config {
	cfg := Config{
		Searchable:       schema.BoolValue(def.Searchable),
		Sortable:         schema.BoolValue(def.Sortable),
		MaxInlineActions: def.MaxInlineActions,
	}
	if def.Pagination != nil {
		cfg.Paginated = def.Pagination.Enabled
		cfg.PageSize = def.Pagination.PageSize
	}
	return cfg
}

// Row is one entry of the computed view. Index is the row's position in the
// underlying RowSet, stable across filtering and sorting.
type Row struct {
	Index  int
	Values map[string]any
}

// PageInfo describes the visible slice, 1-based and inclusive. Start and End
// are zero when nothing matches.
type PageInfo struct {
	Page       int
	PageSize   int
	TotalPages int
	Start      int
	End        int
	Total      int
}

// Option customises a View.
type Option func(*View)

// WithStore routes row mutations through store so subscribers observe them.
func WithStore(store *model.Store) Option {
	return func(v *View) {
		v.store = store
	}
}

// WithEvaluator sets the evaluator used for action visibleWhen rules.
func WithEvaluator(ev visibility.Evaluator) Option {
	return func(v *View) {
		v.evaluator = ev
	}
}

// WithLogger routes rule diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(v *View) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// View computes filter → sort → paginate over a RowSet. Derived results are
// cached and recomputed after any change to the rows or the view state.
type View struct {
	rows      *model.RowSet
	cfg       Config
	store     *model.Store
	evaluator visibility.Evaluator
	logger    *slog.Logger

	mu      sync.Mutex
	search  string
	sortCol string
	sortDir Direction
	page    int

	cacheValid   bool
	cacheVersion uint64
	filtered     []Row
	sorted       []Row
}

// New builds a view over rows.
func New(rows *model.RowSet, cfg Config, opts ...Option) *View {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxInlineActions <= 0 {
		cfg.MaxInlineActions = DefaultMaxInlineActions
	}
	v := &View{
		rows:    rows,
		cfg:     cfg,
		logger:  slog.Default(),
		sortDir: Asc,
		page:    1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

// Config returns the effective configuration.
func (v *View) Config() Config { return v.cfg }

// SetSearch sets the filter term and returns to the first page.
func (v *View) SetSearch(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.search = term
	v.page = 1
	v.cacheValid = false
}

// SortBy sorts by column ascending, or flips the direction when column is
// already the sort column. It is a no-op for non-sortable tables.
func (v *View) SortBy(column string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.cfg.Sortable {
		return
	}
	if v.sortCol == column {
		if v.sortDir == Asc {
			v.sortDir = Desc
		} else {
			v.sortDir = Asc
		}
	} else {
		v.sortCol = column
		v.sortDir = Asc
	}
	v.cacheValid = false
}

// SetSort sets the sort column and direction explicitly. An empty column
// clears sorting.
func (v *View) SetSort(column string, dir Direction) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if dir != Desc {
		dir = Asc
	}
	v.sortCol = column
	v.sortDir = dir
	v.cacheValid = false
}

// Sort returns the current sort column and direction.
func (v *View) Sort() (string, Direction) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sortCol, v.sortDir
}

// SetPage moves to page, clamped into [1, TotalPages].
func (v *View) SetPage(page int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh()
	v.page = clamp(page, 1, v.totalPages())
}

// Page returns the current 1-based page.
func (v *View) Page() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.page
}

// View returns the rows visible on the current page.
func (v *View) View() []Row {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh()
	rows := v.sorted
	if v.cfg.Paginated {
		start := (v.page - 1) * v.cfg.PageSize
		if start > len(rows) {
			start = len(rows)
		}
		end := start + v.cfg.PageSize
		if end > len(rows) {
			end = len(rows)
		}
		rows = rows[start:end]
	}
	return cloneRows(rows)
}

// FilteredCount returns how many rows survive the search filter.
func (v *View) FilteredCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh()
	return len(v.filtered)
}

// TotalPages returns the page count of the filtered rows, at least 1.
func (v *View) TotalPages() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh()
	return v.totalPages()
}

// PageInfo describes the current page.
func (v *View) PageInfo() PageInfo {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.refresh()
	total := len(v.filtered)
	info := PageInfo{Page: v.page, PageSize: v.cfg.PageSize, TotalPages: v.totalPages(), Total: total}
	if total == 0 {
		return info
	}
	if !v.cfg.Paginated {
		info.Start, info.End = 1, total
		return info
	}
	info.Start = (v.page-1)*v.cfg.PageSize + 1
	info.End = v.page * v.cfg.PageSize
	if info.End > total {
		info.End = total
	}
	return info
}

// AddRow appends an empty row and, when paginated, jumps to the page that
// holds the new last row.
func (v *View) AddRow() (int, error) {
	index := -1
	err := v.mutateRows(func(rows *model.RowSet) {
		rows.AddRow()
		index = rows.Len() - 1
	})
	if err != nil {
		return -1, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.cacheValid = false
	if v.cfg.Paginated {
		v.page = pages(v.rowCount(), v.cfg.PageSize)
	}
	return index, nil
}

// RemoveRow deletes the row at its original index and clamps the current
// page back into range.
func (v *View) RemoveRow(index int) error {
	removed := false
	err := v.mutateRows(func(rows *model.RowSet) {
		removed = rows.RemoveRow(index)
	})
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("rowview: row %d out of range", index)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.cacheValid = false
	v.refresh()
	if last := v.totalPages(); v.page > last {
		v.page = last
	}
	return nil
}

func (v *View) mutateRows(fn func(rows *model.RowSet)) error {
	if v.store == nil {
		fn(v.rows)
		return nil
	}
	return v.store.Batch(func(*model.FormModel) error {
		fn(v.rows)
		return nil
	})
}

func (v *View) rowCount() int {
	if v.store == nil {
		return v.rows.Len()
	}
	n := 0
	v.store.Update(func(*model.FormModel) { n = v.rows.Len() })
	return n
}

// snapshot reads the row values, under the store lock when one is attached.
func (v *View) snapshot() ([]Row, uint64) {
	read := func() ([]Row, uint64) {
		groups := v.rows.Rows()
		out := make([]Row, len(groups))
		for i, g := range groups {
			out[i] = Row{Index: i, Values: g.Values()}
		}
		return out, v.rows.Version()
	}
	if v.store == nil {
		return read()
	}
	var (
		rows    []Row
		version uint64
	)
	v.store.Update(func(*model.FormModel) { rows, version = read() })
	return rows, version
}

// refresh recomputes the derived rows when the view state or the row
// values changed. Callers hold v.mu.
func (v *View) refresh() {
	if v.cacheValid && v.cacheVersion == v.rows.Version() {
		return
	}
	all, version := v.snapshot()
	v.filtered = filterRows(all, v.search, v.cfg.Searchable)
	v.sorted = sortRows(v.filtered, v.sortCol, v.sortDir, v.cfg.Sortable)
	v.cacheVersion = version
	v.cacheValid = true
	v.page = clamp(v.page, 1, v.totalPages())
}

func (v *View) totalPages() int {
	if !v.cfg.Paginated {
		return 1
	}
	return pages(len(v.filtered), v.cfg.PageSize)
}

func pages(total, size int) int {
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

func filterRows(rows []Row, term string, enabled bool) []Row {
	term = strings.ToLower(strings.TrimSpace(term))
	if !enabled || term == "" {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if rowMatches(row.Values, term) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatches(values map[string]any, term string) bool {
	for _, value := range values {
		s, ok := scalarText(value)
		if ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func sortRows(rows []Row, column string, dir Direction, enabled bool) []Row {
	out := append([]Row(nil), rows...)
	if !enabled || column == "" {
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Values[column], out[j].Values[column]
		blankA, blankB := blank(a), blank(b)
		switch {
		case blankA && blankB:
			return false
		case blankA:
			return false
		case blankB:
			return true
		}
		c := compare(a, b)
		if dir == Desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// blank reports whether a cell holds no value. Blank cells sort last in both
// directions.
func blank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// compare orders numeric cells before text cells. Numbers compare
// numerically and text compares lexically, so mixed columns keep a total
// order.
func compare(a, b any) int {
	fa, numA := number(a)
	fb, numB := number(b)
	switch {
	case numA && numB:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case numA:
		return -1
	case numB:
		return 1
	}
	sa, _ := scalarText(a)
	sb, _ := scalarText(b)
	return strings.Compare(sa, sb)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func scalarText(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case bool, int, int64, float32, float64:
		return fmt.Sprint(s), true
	default:
		return "", false
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}
