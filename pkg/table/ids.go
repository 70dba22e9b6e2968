package table

import (
	"fmt"
	"sort"

	"github.com/agentstation/crosswalk/pkg/errors"
)

// CheckDense verifies col holds positive integer IDs with no nulls whose
// maximum equals the number of distinct IDs.
func (t *Table) CheckDense(col string) error {
	if err := t.Require("ids", col); err != nil {
		return err
	}
	seen := map[int64]bool{}
	var max int64
	for i, v := range t.Column(col) {
		if IsNull(v) {
			return errors.NewInvariantError("null_id", fmt.Sprintf("row %d has no %s", i, col))
		}
		id, ok := AsInt(v)
		if !ok || id < 1 {
			return errors.NewInvariantError("dense_ids", fmt.Sprintf("row %d has non-positive or non-integer %s %v", i, col, v))
		}
		seen[id] = true
		if id > max {
			max = id
		}
	}
	if max != int64(len(seen)) {
		return errors.NewInvariantError("dense_ids",
			fmt.Sprintf("max %s is %d but %d distinct ids exist", col, max, len(seen)), gaps(seen, max)...)
	}
	return nil
}

// MaxID returns the largest integer in col, or 0 for an empty table.
func (t *Table) MaxID(col string) int64 {
	var max int64
	for _, v := range t.Column(col) {
		if id, ok := AsInt(v); ok && id > max {
			max = id
		}
	}
	return max
}

func gaps(seen map[int64]bool, max int64) []string {
	var missing []int64
	for id := int64(1); id <= max && len(missing) <= 20; id++ {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(a, b int) bool { return missing[a] < missing[b] })
	out := make([]string, len(missing))
	for i, id := range missing {
		out[i] = fmt.Sprint(id)
	}
	return out
}
