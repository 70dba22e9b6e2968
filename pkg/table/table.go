// Package table provides the in-memory tabular layer the linkage engine works on.
//
// A Table is an ordered list of named columns and rows of cells. Cells are
// one of nil (null), string, int64, float64, bool or time.Time. Every
// operation returns a new Table; rows are never mutated once built, so
// derived tables may share row storage with their source.
package table

import (
	"fmt"
	"sort"

	"github.com/agentstation/crosswalk/pkg/errors"
)

// Table is an immutable column-ordered table.
type Table struct {
	cols  []string
	index map[string]int
	rows  [][]any
}

// Row is a read-only view of one table row.
type Row struct {
	t *Table
	i int
}

// Get returns the cell in column col, or nil when the column is absent.
func (r Row) Get(col string) any {
	j, ok := r.t.index[col]
	if !ok {
		return nil
	}
	return r.t.rows[r.i][j]
}

// Index is the row's position in its table.
func (r Row) Index() int { return r.i }

// Values returns a copy of the row's cells in column order.
func (r Row) Values() []any {
	return append([]any(nil), r.t.rows[r.i]...)
}

// New builds a table, normalizing every cell. Column names must be unique and
// every row must have one cell per column.
func New(cols []string, rows ...[]any) (*Table, error) {
	index, err := buildIndex(cols)
	if err != nil {
		return nil, err
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		if len(r) != len(cols) {
			return nil, errors.NewValidationError("rows", i,
				fmt.Sprintf("row %d has %d cells, want %d", i, len(r), len(cols)))
		}
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = Normalize(v)
		}
		out[i] = row
	}
	return &Table{cols: append([]string(nil), cols...), index: index, rows: out}, nil
}

// MustNew is New that panics on malformed input. Intended for literals.
func MustNew(cols []string, rows ...[]any) *Table {
	t, err := New(cols, rows...)
	if err != nil {
		panic(err)
	}
	return t
}

// Empty returns a table with the given columns and no rows.
func Empty(cols ...string) *Table {
	return MustNew(cols)
}

func buildIndex(cols []string) (map[string]int, error) {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := index[c]; dup {
			return nil, errors.NewValidationError("columns", c, "duplicate column "+c)
		}
		index[c] = i
	}
	return index, nil
}

func (t *Table) derive(cols []string, rows [][]any) *Table {
	index, err := buildIndex(cols)
	if err != nil {
		panic(err)
	}
	return &Table{cols: cols, index: index, rows: rows}
}

// Columns returns a copy of the column names.
func (t *Table) Columns() []string {
	return append([]string(nil), t.cols...)
}

// Len is the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Has reports whether the table has column col.
func (t *Table) Has(col string) bool {
	_, ok := t.index[col]
	return ok
}

// Missing returns the subset of cols the table lacks, in the given order.
func (t *Table) Missing(cols ...string) []string {
	var missing []string
	for _, c := range cols {
		if !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Require returns a SchemaError naming any of cols the table lacks.
func (t *Table) Require(name string, cols ...string) error {
	if missing := t.Missing(cols...); len(missing) > 0 {
		return errors.NewSchemaError(name, missing...)
	}
	return nil
}

// Row returns a view of row i.
func (t *Table) Row(i int) Row { return Row{t: t, i: i} }

// Value returns the cell at row i, column col.
func (t *Table) Value(i int, col string) any {
	return t.Row(i).Get(col)
}

// Column returns a copy of one column's cells.
func (t *Table) Column(col string) []any {
	j, ok := t.index[col]
	if !ok {
		return nil
	}
	out := make([]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = r[j]
	}
	return out
}

// Records returns a deep copy of all rows.
func (t *Table) Records() [][]any {
	out := make([][]any, len(t.rows))
	for i, r := range t.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}

// Each calls fn for every row in order.
func (t *Table) Each(fn func(Row)) {
	for i := range t.rows {
		fn(Row{t: t, i: i})
	}
}

func (t *Table) positions(cols []string) ([]int, error) {
	pos := make([]int, len(cols))
	for k, c := range cols {
		j, ok := t.index[c]
		if !ok {
			return nil, errors.NewSchemaError("", c)
		}
		pos[k] = j
	}
	return pos, nil
}

func (t *Table) keyAt(i int, pos []int) string {
	vals := make([]any, len(pos))
	for k, j := range pos {
		vals[k] = t.rows[i][j]
	}
	return Key(vals...)
}

// RowKey encodes row i's cells in cols. Absent columns encode as null.
func (t *Table) RowKey(i int, cols ...string) string {
	vals := make([]any, len(cols))
	for k, c := range cols {
		vals[k] = t.Value(i, c)
	}
	return Key(vals...)
}

// Select projects the table onto cols, in the given order.
func (t *Table) Select(cols ...string) (*Table, error) {
	pos, err := t.positions(cols)
	if err != nil {
		return nil, err
	}
	rows := make([][]any, len(t.rows))
	for i, r := range t.rows {
		row := make([]any, len(pos))
		for k, j := range pos {
			row[k] = r[j]
		}
		rows[i] = row
	}
	return t.derive(append([]string(nil), cols...), rows), nil
}

// Drop removes the named columns; absent names are ignored.
func (t *Table) Drop(cols ...string) *Table {
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	var keep []string
	for _, c := range t.cols {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	out, _ := t.Select(keep...)
	return out
}

// Rename renames columns per mapping; absent names are ignored.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	cols := t.Columns()
	for i, c := range cols {
		if to, ok := mapping[c]; ok {
			cols[i] = to
		}
	}
	if _, err := buildIndex(cols); err != nil {
		return nil, err
	}
	return t.derive(cols, t.rows), nil
}

// Take returns the rows at the given positions, in that order.
func (t *Table) Take(indices []int) *Table {
	rows := make([][]any, len(indices))
	for k, i := range indices {
		rows[k] = t.rows[i]
	}
	return t.derive(t.Columns(), rows)
}

// Filter keeps rows for which keep returns true.
func (t *Table) Filter(keep func(Row) bool) *Table {
	var idx []int
	for i := range t.rows {
		if keep(Row{t: t, i: i}) {
			idx = append(idx, i)
		}
	}
	return t.Take(idx)
}

// DropNulls removes rows with a null in any of cols. Absent columns count as null.
func (t *Table) DropNulls(cols ...string) *Table {
	return t.Filter(func(r Row) bool {
		for _, c := range cols {
			if IsNull(r.Get(c)) {
				return false
			}
		}
		return true
	})
}

// WithColumn sets column name to fn(row) for every row, appending the column
// when it does not exist yet.
func (t *Table) WithColumn(name string, fn func(Row) any) *Table {
	values := make([]any, len(t.rows))
	for i := range t.rows {
		values[i] = fn(Row{t: t, i: i})
	}
	out, _ := t.WithValues(name, values)
	return out
}

// WithValues sets column name from a slice with one cell per row.
func (t *Table) WithValues(name string, values []any) (*Table, error) {
	if len(values) != len(t.rows) {
		return nil, errors.NewValidationError(name, len(values),
			fmt.Sprintf("got %d values for %d rows", len(values), len(t.rows)))
	}
	j, exists := t.index[name]
	cols := t.Columns()
	if !exists {
		cols = append(cols, name)
	}
	rows := make([][]any, len(t.rows))
	for i, r := range t.rows {
		var row []any
		if exists {
			row = append([]any(nil), r...)
			row[j] = Normalize(values[i])
		} else {
			row = make([]any, len(r)+1)
			copy(row, r)
			row[len(r)] = Normalize(values[i])
		}
		rows[i] = row
	}
	return t.derive(cols, rows), nil
}

// Unique keeps the first row of each distinct key on cols.
func (t *Table) Unique(cols ...string) (*Table, error) {
	pos, err := t.positions(cols)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(t.rows))
	var idx []int
	for i := range t.rows {
		k := t.keyAt(i, pos)
		if !seen[k] {
			seen[k] = true
			idx = append(idx, i)
		}
	}
	return t.Take(idx), nil
}

// Distinct projects onto cols and keeps the first occurrence of each row.
func (t *Table) Distinct(cols ...string) (*Table, error) {
	sel, err := t.Select(cols...)
	if err != nil {
		return nil, err
	}
	return sel.Unique(cols...)
}

// SortBy stably sorts rows ascending on cols.
func (t *Table) SortBy(cols ...string) (*Table, error) {
	pos, err := t.positions(cols)
	if err != nil {
		return nil, err
	}
	rows := append([][]any(nil), t.rows...)
	sort.SliceStable(rows, func(a, b int) bool {
		for _, j := range pos {
			if c := Compare(rows[a][j], rows[b][j]); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return t.derive(t.Columns(), rows), nil
}

// Concat stacks tables. The result has the union of columns in first-seen
// order; cells for columns a table lacks are null.
func Concat(tables ...*Table) *Table {
	var cols []string
	seen := map[string]bool{}
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.cols {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	var rows [][]any
	for _, t := range tables {
		if t == nil {
			continue
		}
		for i := range t.rows {
			row := make([]any, len(cols))
			for k, c := range cols {
				row[k] = t.Value(i, c)
			}
			rows = append(rows, row)
		}
	}
	index, _ := buildIndex(cols)
	return &Table{cols: cols, index: index, rows: rows}
}

// Group is one distinct key and the rows carrying it.
type Group struct {
	Key  []any
	Rows []int
}

// GroupIndices groups row positions by their cells in cols, in first-appearance order.
func (t *Table) GroupIndices(cols ...string) ([]Group, error) {
	pos, err := t.positions(cols)
	if err != nil {
		return nil, err
	}
	at := make(map[string]int)
	var groups []Group
	for i := range t.rows {
		k := t.keyAt(i, pos)
		g, ok := at[k]
		if !ok {
			key := make([]any, len(pos))
			for n, j := range pos {
				key[n] = t.rows[i][j]
			}
			g = len(groups)
			at[k] = g
			groups = append(groups, Group{Key: key})
		}
		groups[g].Rows = append(groups[g].Rows, i)
	}
	return groups, nil
}

// CountDistinct counts distinct non-null values of col.
func (t *Table) CountDistinct(col string) int {
	seen := map[string]bool{}
	for _, v := range t.Column(col) {
		if !IsNull(v) {
			seen[Key(v)] = true
		}
	}
	return len(seen)
}
