// Package aggregate collapses many linked observations into one canonical
// profile row per entity.
package aggregate

import (
	"context"
	"fmt"

	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Strategy is one of Mode, Max, Current, MergeOn, Count or CountDistinct.
type Strategy interface {
	strategy() string
}

// Mode picks the most frequent non-null value; ties go to the value seen first.
type Mode struct{}

// Max picks the largest non-null value.
type Max struct{}

// Current picks the value on the row with the latest OrderBy value, or the
// earliest when Earliest is set. Rows lacking either value are ignored and
// ties go to the first row.
type Current struct {
	OrderBy  string
	Earliest bool
}

// MergeOn picks the mode of the column among rows whose On column equals the
// value already aggregated for On. The Spec aggregating On must come first.
type MergeOn struct {
	On string
}

// Count counts non-null values of the column, or rows when the column is empty.
type Count struct{}

// CountDistinct counts distinct non-null values of the column.
type CountDistinct struct{}

func (Mode) strategy() string          { return "mode" }
func (Max) strategy() string           { return "max" }
func (Current) strategy() string       { return "current" }
func (MergeOn) strategy() string       { return "merge_on" }
func (Count) strategy() string         { return "count" }
func (CountDistinct) strategy() string { return "count_distinct" }

// Spec aggregates Column into output column As (defaults to Column).
type Spec struct {
	Column   string
	As       string
	Strategy Strategy
}

func (s Spec) name() string {
	if s.As != "" {
		return s.As
	}
	return s.Column
}

// Aggregate returns one row per distinct idCol value, in first-appearance
// order, with one column per spec.
func Aggregate(ctx context.Context, t *table.Table, idCol string, specs ...Spec) (*table.Table, error) {
	sources, err := validate(t, idCol, specs)
	if err != nil {
		return nil, err
	}
	for i, v := range t.Column(idCol) {
		if table.IsNull(v) {
			return nil, errors.NewInvariantError("null_id", fmt.Sprintf("row %d has no %s", i, idCol))
		}
	}

	groups, err := t.GroupIndices(idCol)
	if err != nil {
		return nil, err
	}

	cols := []string{idCol}
	for _, s := range specs {
		cols = append(cols, s.name())
	}
	rows := make([][]any, len(groups))
	for g, grp := range groups {
		row := make([]any, len(cols))
		row[0] = grp.Key[0]
		done := make(map[string]any, len(specs))
		for k, s := range specs {
			var v any
			switch st := s.Strategy.(type) {
			case Mode:
				v = mode(t, grp.Rows, s.Column)
			case Max:
				v = maxOf(t, grp.Rows, s.Column)
			case Current:
				v = current(t, grp.Rows, s.Column, st)
			case MergeOn:
				v = mergeOn(t, grp.Rows, s.Column, sources[st.On], done[st.On])
			case Count:
				v = count(t, grp.Rows, s.Column)
			case CountDistinct:
				v = countDistinct(t, grp.Rows, s.Column)
			}
			done[s.name()] = v
			row[k+1] = v
		}
		rows[g] = row
	}

	out, err := table.New(cols, rows...)
	if err != nil {
		return nil, err
	}
	if out.Len() != len(groups) {
		return nil, errors.NewInvariantError("row_count",
			fmt.Sprintf("aggregated %d rows for %d entities", out.Len(), len(groups)))
	}

	logging.FromContext(ctx).Debug().
		Int("rows", t.Len()).
		Int("entities", out.Len()).
		Int("columns", len(specs)).
		Msg("Aggregated profile")
	return out, nil
}

// validate checks columns exist and returns, per output name, its source column.
func validate(t *table.Table, idCol string, specs []Spec) (map[string]string, error) {
	if err := t.Require("profile input", idCol); err != nil {
		return nil, err
	}
	sources := make(map[string]string, len(specs))
	for i, s := range specs {
		if s.Strategy == nil {
			return nil, errors.NewValidationError("strategy", s.Column, fmt.Sprintf("spec %d has no strategy", i))
		}
		name := s.name()
		if name == "" {
			return nil, errors.NewValidationError("as", nil, fmt.Sprintf("spec %d needs a column or an output name", i))
		}
		if name == idCol {
			return nil, errors.NewValidationError("as", name, "output column collides with the id column")
		}
		if _, dup := sources[name]; dup {
			return nil, errors.NewValidationError("as", name, "duplicate output column "+name)
		}
		if s.Column != "" {
			if err := t.Require("profile input", s.Column); err != nil {
				return nil, err
			}
		} else if _, ok := s.Strategy.(Count); !ok {
			return nil, errors.NewValidationError("column", nil, fmt.Sprintf("%s needs a column", s.Strategy.strategy()))
		}
		switch st := s.Strategy.(type) {
		case Current:
			if err := t.Require("profile input", st.OrderBy); err != nil {
				return nil, err
			}
		case MergeOn:
			if _, ok := sources[st.On]; !ok {
				return nil, errors.NewValidationError("on", st.On, "merge_on must follow the entry that aggregates "+st.On)
			}
		}
		sources[name] = s.Column
	}
	return sources, nil
}

func mode(t *table.Table, rows []int, col string) any {
	counts := map[string]int{}
	var order []any
	for _, i := range rows {
		v := t.Value(i, col)
		if table.IsNull(v) {
			continue
		}
		k := table.Key(v)
		if counts[k] == 0 {
			order = append(order, v)
		}
		counts[k]++
	}
	var best any
	bestN := 0
	for _, v := range order {
		if n := counts[table.Key(v)]; n > bestN {
			best, bestN = v, n
		}
	}
	return best
}

func maxOf(t *table.Table, rows []int, col string) any {
	var best any
	for _, i := range rows {
		v := t.Value(i, col)
		if table.IsNull(v) {
			continue
		}
		if best == nil || table.Compare(v, best) > 0 {
			best = v
		}
	}
	return best
}

func current(t *table.Table, rows []int, col string, st Current) any {
	var best, at any
	for _, i := range rows {
		v, o := t.Value(i, col), t.Value(i, st.OrderBy)
		if table.IsNull(v) || table.IsNull(o) {
			continue
		}
		c := table.Compare(o, at)
		if at == nil || (!st.Earliest && c > 0) || (st.Earliest && c < 0) {
			best, at = v, o
		}
	}
	return best
}

func mergeOn(t *table.Table, rows []int, col, onSource string, onValue any) any {
	if table.IsNull(onValue) {
		return nil
	}
	var matching []int
	for _, i := range rows {
		if table.Equal(t.Value(i, onSource), onValue) {
			matching = append(matching, i)
		}
	}
	return mode(t, matching, col)
}

func count(t *table.Table, rows []int, col string) any {
	if col == "" {
		return int64(len(rows))
	}
	var n int64
	for _, i := range rows {
		if !table.IsNull(t.Value(i, col)) {
			n++
		}
	}
	return n
}

func countDistinct(t *table.Table, rows []int, col string) any {
	seen := map[string]bool{}
	for _, i := range rows {
		if v := t.Value(i, col); !table.IsNull(v) {
			seen[table.Key(v)] = true
		}
	}
	return int64(len(seen))
}
