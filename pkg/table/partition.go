package table

// Partition splits rows by how often their key on cols occurs: unique holds
// rows whose key occurs exactly once, dup holds every row of a repeated key.
// Row order is preserved in both.
func (t *Table) Partition(cols ...string) (unique, dup *Table, err error) {
	pos, err := t.positions(cols)
	if err != nil {
		return nil, nil, err
	}
	counts := make(map[string]int, len(t.rows))
	keys := make([]string, len(t.rows))
	for i := range t.rows {
		keys[i] = t.keyAt(i, pos)
		counts[keys[i]]++
	}
	var u, d []int
	for i, k := range keys {
		if counts[k] == 1 {
			u = append(u, i)
		} else {
			d = append(d, i)
		}
	}
	return t.Take(u), t.Take(d), nil
}

// Fill expands each id into every combination of its distinct non-null values
// across cols. A column with no value for an id contributes a single null.
// Ids appear in first-appearance order; values in first-seen order.
func (t *Table) Fill(idCol string, cols ...string) (*Table, error) {
	groups, err := t.GroupIndices(idCol)
	if err != nil {
		return nil, err
	}
	pos, err := t.positions(cols)
	if err != nil {
		return nil, err
	}

	var rows [][]any
	for _, g := range groups {
		choices := make([][]any, len(pos))
		for k, j := range pos {
			seen := map[string]bool{}
			for _, i := range g.Rows {
				v := t.rows[i][j]
				if IsNull(v) || seen[Key(v)] {
					continue
				}
				seen[Key(v)] = true
				choices[k] = append(choices[k], v)
			}
			if len(choices[k]) == 0 {
				choices[k] = []any{nil}
			}
		}
		for _, combo := range product(choices) {
			rows = append(rows, append([]any{g.Key[0]}, combo...))
		}
	}
	return t.derive(append([]string{idCol}, cols...), rows), nil
}

// product returns the Cartesian product of choices, varying the last slot fastest.
func product(choices [][]any) [][]any {
	out := [][]any{{}}
	for _, opts := range choices {
		next := make([][]any, 0, len(out)*len(opts))
		for _, prefix := range out {
			for _, v := range opts {
				combo := make([]any, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, append(combo, v))
			}
		}
		out = next
	}
	return out
}

// Components numbers connected components of rows, where two rows connect
// when they share a non-null value in the same column of cols. Components are
// numbered densely from 1 in order of their first row.
func (t *Table) Components(cols ...string) ([]int, error) {
	pos, err := t.positions(cols)
	if err != nil {
		return nil, err
	}
	ds := NewDisjointSet(len(t.rows))
	valueNode := map[string]int{}
	for i, r := range t.rows {
		for k, j := range pos {
			if IsNull(r[j]) {
				continue
			}
			key := Key(cols[k], r[j])
			n, ok := valueNode[key]
			if !ok {
				n = ds.Add()
				valueNode[key] = n
			}
			ds.Union(i, n)
		}
	}

	labels := make([]int, len(t.rows))
	number := map[int]int{}
	for i := range t.rows {
		root := ds.Find(i)
		c, ok := number[root]
		if !ok {
			c = len(number) + 1
			number[root] = c
		}
		labels[i] = c
	}
	return labels, nil
}
