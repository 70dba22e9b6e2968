// Package dataset shapes one batch into matching-ready form: it drops rows
// flagged unlinkable, reshapes repeated wide columns to rows, derives
// alternate spellings, and flags columns that are always null per identity.
package dataset

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Side tells derivations which half of a merge a table plays.
type Side string

// Sides.
const (
	Reference    Side = "reference"
	Supplemental Side = "supplemental"
)

// ParseSide validates a side name; empty means both sides.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(s)) {
	case "":
		return "", nil
	case Reference, "ref":
		return Reference, nil
	case Supplemental, "sup":
		return Supplemental, nil
	}
	return "", errors.NewValidationError("side", s, "must be reference or supplemental")
}

// Options configures Wrap.
type Options struct {
	// Side selects which derivations apply.
	Side Side
	// IDColumn identifies an entity within the table. Required.
	IDColumn string
	// MergeableColumn is a sentinel; rows with a false value are dropped.
	// Defaults to constants.DefaultMergeableColumn and is ignored when absent.
	MergeableColumn string
	// WideStubs name repeated column groups such as "star" for star1, star2.
	WideStubs []string
	// Derivations add alternate columns, applied in order.
	Derivations []Derivation
	// AlwaysNull columns get a per-identity <col>_always_null flag.
	AlwaysNull []string
	// Fill expands each identity into every combination of its values in
	// these columns. The result keeps only the ID, Fill and flag columns.
	Fill []string
}

// Dataset is a wrapped batch.
type Dataset struct {
	Side     Side
	IDColumn string
	// Raw is the table as given.
	Raw *table.Table
	// Table is the matching-ready table.
	Table *table.Table
	// Unmergeable counts rows dropped by the sentinel.
	Unmergeable int
}

// Wrap shapes t per opts.
func Wrap(ctx context.Context, t *table.Table, opts Options) (*Dataset, error) {
	logger := logging.FromContext(ctx)
	if opts.IDColumn == "" {
		return nil, errors.NewValidationError("id_column", nil, "an id column is required")
	}
	if err := t.Require(string(opts.Side), opts.IDColumn); err != nil {
		return nil, err
	}
	if n := t.Len() - t.DropNulls(opts.IDColumn).Len(); n > 0 {
		return nil, errors.NewValidationError("id_column", opts.IDColumn, fmt.Sprintf("%d rows have no %s", n, opts.IDColumn))
	}

	ds := &Dataset{Side: opts.Side, IDColumn: opts.IDColumn, Raw: t}

	out := dropUnmergeable(t, mergeableColumn(opts))
	ds.Unmergeable = t.Len() - out.Len()

	out, err := reshapeWide(out, opts.WideStubs)
	if err != nil {
		return nil, err
	}

	for _, d := range opts.Derivations {
		if s := d.side(); s != "" && s != opts.Side {
			continue
		}
		if missing := out.Missing(d.inputs()...); len(missing) > 0 {
			logger.Warn().
				Str("derivation", d.name()).
				Strs("missing", missing).
				Msg("Skipping derivation, source columns absent")
			continue
		}
		out = apply(out, d)
	}

	flags := make([]string, 0, len(opts.AlwaysNull))
	for _, col := range opts.AlwaysNull {
		if !out.Has(col) {
			logger.Warn().Str("column", col).Msg("Always-null column absent, flagging every identity")
		}
		out, err = flagAlwaysNull(out, opts.IDColumn, col)
		if err != nil {
			return nil, err
		}
		flags = append(flags, col+constants.AlwaysNullSuffix)
	}

	if len(opts.Fill) > 0 {
		cols := append(append([]string(nil), opts.Fill...), flags...)
		if err := out.Require(string(opts.Side), cols...); err != nil {
			return nil, err
		}
		if out, err = out.Fill(opts.IDColumn, cols...); err != nil {
			return nil, err
		}
	}

	ds.Table = out
	logger.Debug().
		Str("side", string(opts.Side)).
		Int("rows", t.Len()).
		Int("unmergeable", ds.Unmergeable).
		Int("shaped_rows", out.Len()).
		Msg("Dataset wrapped")
	return ds, nil
}

func mergeableColumn(opts Options) string {
	if opts.MergeableColumn != "" {
		return opts.MergeableColumn
	}
	return constants.DefaultMergeableColumn
}

func dropUnmergeable(t *table.Table, col string) *table.Table {
	if !t.Has(col) {
		return t
	}
	return t.Filter(func(r table.Row) bool {
		return !isFalse(r.Get(col))
	})
}

// isFalse reports a sentinel explicitly marking a row unlinkable. Null is not false.
func isFalse(v any) bool {
	switch x := v.(type) {
	case bool:
		return !x
	case int64:
		return x == 0
	case float64:
		return x == 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "0", "n", "no", "f", "false":
			return true
		}
	}
	return false
}

// reshapeWide turns stub1..stubN columns into one stub column with one row
// per non-null position. Rows whose positions are all null are kept once.
func reshapeWide(t *table.Table, stubs []string) (*table.Table, error) {
	if len(stubs) == 0 {
		return t, nil
	}
	// at[position][stub index] is the wide column holding that cell.
	at := map[int]map[int]string{}
	var wide []string
	for _, c := range t.Columns() {
		for k, stub := range stubs {
			n, ok := suffix(c, stub)
			if !ok {
				continue
			}
			if at[n] == nil {
				at[n] = map[int]string{}
			}
			at[n][k] = c
			wide = append(wide, c)
		}
	}
	if len(wide) == 0 {
		return t, nil
	}
	for _, stub := range stubs {
		if t.Has(stub) {
			return nil, errors.NewValidationError("wide_stubs", stub, "table already has column "+stub)
		}
	}
	positions := make([]int, 0, len(at))
	for n := range at {
		positions = append(positions, n)
	}
	sort.Ints(positions)

	base := t.Drop(wide...)
	cols := append(base.Columns(), stubs...)
	var rows [][]any
	for i := 0; i < t.Len(); i++ {
		keep := base.Row(i).Values()
		emitted := false
		for _, n := range positions {
			vals := make([]any, len(stubs))
			present := false
			for k, col := range at[n] {
				vals[k] = t.Value(i, col)
				if !table.IsNull(vals[k]) {
					present = true
				}
			}
			if present {
				rows = append(rows, append(append([]any(nil), keep...), vals...))
				emitted = true
			}
		}
		if !emitted {
			rows = append(rows, append(append([]any(nil), keep...), make([]any, len(stubs))...))
		}
	}
	return table.New(cols, rows...)
}

func suffix(col, stub string) (int, bool) {
	rest, ok := strings.CutPrefix(col, stub)
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	return n, err == nil
}

func flagAlwaysNull(t *table.Table, idCol, col string) (*table.Table, error) {
	groups, err := t.GroupIndices(idCol)
	if err != nil {
		return nil, err
	}
	flags := make([]any, t.Len())
	for _, g := range groups {
		all := true
		for _, i := range g.Rows {
			if !table.IsNull(t.Value(i, col)) {
				all = false
				break
			}
		}
		for _, i := range g.Rows {
			flags[i] = all
		}
	}
	return t.WithValues(col+constants.AlwaysNullSuffix, flags)
}
