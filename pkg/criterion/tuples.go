package criterion

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Tuple is one ordered set of columns joined on together.
type Tuple []string

// Label is the provenance tag recorded on pairs the tuple produced.
func (t Tuple) Label() string {
	return strings.Join(t, constants.TupleSeparator)
}

func (t Tuple) contains(col string) bool {
	for _, c := range t {
		if c == col {
			return true
		}
	}
	return false
}

func (t Tuple) set() string {
	s := append([]string(nil), t...)
	sort.Strings(s)
	return strings.Join(s, "\x1f")
}

// tupleCache memoizes generated tuple lists per criterion shape and column set.
var tupleCache = gocache.New(constants.TupleCacheTTL, constants.TupleCacheCleanup)

// Tuples generates the column tuples the criterion tries, in order, against
// tables ref and sup. Choices absent from either side are skipped.
func (c Criterion) Tuples(ctx context.Context, ref, sup *table.Table) []Tuple {
	key := c.signature() + "|" + commonSignature(ref, sup)
	if cached, ok := tupleCache.Get(key); ok {
		return cloneTuples(cached.([]Tuple))
	}
	tuples := c.generate(ctx, ref, sup)
	tupleCache.Set(key, tuples, gocache.DefaultExpiration)
	return cloneTuples(tuples)
}

func (c Criterion) generate(ctx context.Context, ref, sup *table.Table) []Tuple {
	logger := logging.FromContext(ctx)
	both := func(col string) bool { return ref.Has(col) && sup.Has(col) }

	choices := make([][]string, len(c.Attributes))
	for k, attr := range c.Attributes {
		for _, col := range attr.Choices {
			if col == "" || both(col) {
				choices[k] = append(choices[k], col)
				continue
			}
			logger.Warn().
				Str("criterion", c.Name).
				Str("attribute", attr.Name).
				Str("column", col).
				Msg("Column absent on one side, skipping choice")
		}
	}

	var tuples []Tuple
	if len(c.Attributes) > 0 {
		combos := [][]string{{}}
		for _, opts := range choices {
			next := make([][]string, 0, len(combos)*len(opts))
			for _, prefix := range combos {
				for _, col := range opts {
					combo := append(append([]string(nil), prefix...), col)
					next = append(next, combo)
				}
			}
			combos = next
		}
		for _, combo := range combos {
			var t Tuple
			for _, col := range combo {
				if col != "" && !t.contains(col) {
					t = append(t, col)
				}
			}
			if len(t) > 0 {
				tuples = append(tuples, t)
			}
		}
	}

	for _, custom := range c.Custom {
		ok := len(custom) > 0
		for _, col := range custom {
			if !both(col) {
				ok = false
				logger.Warn().
					Str("criterion", c.Name).
					Str("column", col).
					Strs("tuple", custom).
					Msg("Column absent on one side, skipping custom tuple")
				break
			}
		}
		if ok {
			var t Tuple
			for _, col := range custom {
				if !t.contains(col) {
					t = append(t, col)
				}
			}
			tuples = append(tuples, t)
		}
	}

	seen := map[string]bool{}
	unique := tuples[:0]
	for _, t := range tuples {
		if s := t.set(); !seen[s] {
			seen[s] = true
			unique = append(unique, t)
		}
	}

	limit := c.MaxTuples
	if limit <= 0 {
		limit = constants.DefaultMaxTuples
	}
	if len(unique) > limit {
		logger.Warn().
			Str("criterion", c.Name).
			Int("generated", len(unique)).
			Int("max_tuples", limit).
			Msg("Tuple count exceeds cap, keeping the most specific tuples")
		unique = unique[:limit]
	}
	return unique
}

func (c Criterion) signature() string {
	var b strings.Builder
	b.WriteString(c.Name)
	for _, a := range c.Attributes {
		fmt.Fprintf(&b, "|%s=%s", a.Name, strings.Join(a.Choices, ","))
	}
	for _, t := range c.Custom {
		fmt.Fprintf(&b, "|+%s", strings.Join(t, ","))
	}
	fmt.Fprintf(&b, "|max=%d", c.MaxTuples)
	return b.String()
}

func commonSignature(ref, sup *table.Table) string {
	var common []string
	for _, col := range ref.Columns() {
		if sup.Has(col) {
			common = append(common, col)
		}
	}
	sort.Strings(common)
	return strings.Join(common, ",")
}

func cloneTuples(in []Tuple) []Tuple {
	out := make([]Tuple, len(in))
	for i, t := range in {
		out[i] = append(Tuple(nil), t...)
	}
	return out
}
