package conflict

import (
	"sort"

	"github.com/agentstation/crosswalk/pkg/table"
)

// leaf is a terminal group of the bisection: resolved groups share one ID,
// unresolved ones are handed to the policy.
type leaf struct {
	rows     []int
	resolved bool
}

type bisector struct {
	t             *table.Table
	nullsConflict bool
}

// split recursively bisects rows on the remaining conflict columns, most
// populated column first. A column splits the group when its values disagree
// and it has no nulls; disagreeing values next to nulls cannot be split
// safely and defer the group.
func (b bisector) split(rows []int, remaining []string) []leaf {
	if len(rows) <= 1 {
		return []leaf{{rows: rows, resolved: true}}
	}

	for _, col := range b.order(rows, remaining) {
		parts, nulls := b.partition(rows, col)
		distinct := len(parts)
		if b.nullsConflict && nulls > 0 {
			distinct++
		}
		if distinct <= 1 {
			continue
		}
		if nulls > 0 && !b.nullsConflict {
			return []leaf{{rows: rows, resolved: false}}
		}

		rest := without(remaining, col)
		var leaves []leaf
		for _, p := range parts {
			leaves = append(leaves, b.split(p, rest)...)
		}
		if nulls > 0 {
			leaves = append(leaves, b.split(b.nullRows(rows, col), rest)...)
		}
		return leaves
	}
	return []leaf{{rows: rows, resolved: true}}
}

// order sorts columns by descending non-null count within rows, keeping the
// configured order for ties.
func (b bisector) order(rows []int, cols []string) []string {
	counts := make(map[string]int, len(cols))
	for _, c := range cols {
		for _, i := range rows {
			if !table.IsNull(b.t.Value(i, c)) {
				counts[c]++
			}
		}
	}
	ordered := append([]string(nil), cols...)
	sort.SliceStable(ordered, func(x, y int) bool {
		return counts[ordered[x]] > counts[ordered[y]]
	})
	return ordered
}

// partition groups rows by their non-null value of col in first-seen order and
// counts the null rows.
func (b bisector) partition(rows []int, col string) (parts [][]int, nulls int) {
	at := map[string]int{}
	for _, i := range rows {
		v := b.t.Value(i, col)
		if table.IsNull(v) {
			nulls++
			continue
		}
		k := table.Key(v)
		p, ok := at[k]
		if !ok {
			p = len(parts)
			at[k] = p
			parts = append(parts, nil)
		}
		parts[p] = append(parts[p], i)
	}
	return parts, nulls
}

func (b bisector) nullRows(rows []int, col string) []int {
	var out []int
	for _, i := range rows {
		if table.IsNull(b.t.Value(i, col)) {
			out = append(out, i)
		}
	}
	return out
}

func without(cols []string, drop string) []string {
	out := make([]string, 0, len(cols))
	for _, c := range cols {
		if c != drop {
			out = append(out, c)
		}
	}
	return out
}
