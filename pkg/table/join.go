package table

import (
	"github.com/agentstation/crosswalk/pkg/errors"
)

// InnerJoin joins t with right on equal keys in on. Null keys match null keys;
// callers that must not link on nulls drop them first. Non-key columns of
// right must not collide with columns of t.
func (t *Table) InnerJoin(right *Table, on ...string) (*Table, error) {
	return t.join(right, on, false)
}

// LeftJoin keeps every row of t, repeating it once per matching right row and
// filling right's columns with null when nothing matches.
func (t *Table) LeftJoin(right *Table, on ...string) (*Table, error) {
	return t.join(right, on, true)
}

func (t *Table) join(right *Table, on []string, keepUnmatched bool) (*Table, error) {
	if err := t.Require("left", on...); err != nil {
		return nil, err
	}
	if err := right.Require("right", on...); err != nil {
		return nil, err
	}
	lpos, _ := t.positions(on)
	rpos, _ := right.positions(on)

	isKey := make(map[string]bool, len(on))
	for _, c := range on {
		isKey[c] = true
	}
	var extra []string
	for _, c := range right.cols {
		if isKey[c] {
			continue
		}
		if t.Has(c) {
			return nil, errors.NewValidationError("columns", c, "join would duplicate column "+c)
		}
		extra = append(extra, c)
	}
	epos, _ := right.positions(extra)

	buckets := make(map[string][]int, right.Len())
	for i := range right.rows {
		k := right.keyAt(i, rpos)
		buckets[k] = append(buckets[k], i)
	}

	cols := append(t.Columns(), extra...)
	var rows [][]any
	for i, l := range t.rows {
		matches := buckets[t.keyAt(i, lpos)]
		if len(matches) == 0 {
			if keepUnmatched {
				row := make([]any, len(cols))
				copy(row, l)
				rows = append(rows, row)
			}
			continue
		}
		for _, m := range matches {
			row := make([]any, 0, len(cols))
			row = append(row, l...)
			for _, j := range epos {
				row = append(row, right.rows[m][j])
			}
			rows = append(rows, row)
		}
	}
	return t.derive(cols, rows), nil
}

// AntiJoin keeps rows of t whose key on cols does not occur in other.
func (t *Table) AntiJoin(other *Table, cols ...string) (*Table, error) {
	return t.membership(other, cols, false)
}

// SemiJoin keeps rows of t whose key on cols occurs in other.
func (t *Table) SemiJoin(other *Table, cols ...string) (*Table, error) {
	return t.membership(other, cols, true)
}

func (t *Table) membership(other *Table, cols []string, want bool) (*Table, error) {
	if err := t.Require("left", cols...); err != nil {
		return nil, err
	}
	if err := other.Require("right", cols...); err != nil {
		return nil, err
	}
	lpos, _ := t.positions(cols)
	rpos, _ := other.positions(cols)
	present := make(map[string]bool, other.Len())
	for i := range other.rows {
		present[other.keyAt(i, rpos)] = true
	}
	var idx []int
	for i := range t.rows {
		if present[t.keyAt(i, lpos)] == want {
			idx = append(idx, i)
		}
	}
	return t.Take(idx), nil
}
