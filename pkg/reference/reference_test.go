package reference_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/agentstation/crosswalk/pkg/criterion"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/reference"
	"github.com/agentstation/crosswalk/pkg/table"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tuple(name string, cols ...string) criterion.Criterion {
	return criterion.Criterion{Name: name, Custom: [][]string{cols}}
}

func ints(vals []any) []int64 {
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i], _ = table.AsInt(v)
	}
	return out
}

func TestSeed(t *testing.T) {
	batch := table.MustNew([]string{"pid", "first_name", "last_name"},
		[]any{"p1", "BOB", "JONES"},
		[]any{"p2", "ANN", "SMITH"},
		[]any{"p1", "BOB", "JONES"},
		[]any{"p3", "CARL", "LEE"},
	)
	s, err := reference.Seed(context.Background(), batch, "pid", "")
	require.NoError(t, err)

	assert.Equal(t, reference.Seeded, s.Stage())
	assert.Equal(t, "uid", s.UIDColumn())
	assert.Equal(t, []string{"uid", "pid", "first_name", "last_name"}, s.Canonical().Columns())
	assert.Equal(t, []int64{1, 2, 1, 3}, ints(s.Canonical().Column("uid")))
	assert.Equal(t, []string{"pid"}, s.IDColumns())

	t.Run("null id", func(t *testing.T) {
		bad := table.MustNew([]string{"pid"}, []any{"p1"}, []any{nil})
		_, err := reference.Seed(context.Background(), bad, "pid", "")
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})
	t.Run("missing id column", func(t *testing.T) {
		_, err := reference.Seed(context.Background(), batch, "nope", "")
		assert.ErrorIs(t, err, errors.ErrSchemaDrift)
	})
}

// hundred seeds entities 1..100 with distinct names and birth years.
func hundred(t *testing.T) *reference.State {
	t.Helper()
	var rows [][]any
	for i := 1; i <= 100; i++ {
		rows = append(rows, []any{fmt.Sprintf("p%d", i), fmt.Sprintf("F%d", i), fmt.Sprintf("L%d", i), 1900 + i})
	}
	seed := table.MustNew([]string{"pid", "first_name", "last_name", "birth_year"}, rows...)
	s, err := reference.Seed(context.Background(), seed, "pid", "uid")
	require.NoError(t, err)
	return s
}

// tenBatch has five exact matches, two name-only matches and three strangers.
func tenBatch() *table.Table {
	var rows [][]any
	for i := 1; i <= 5; i++ {
		rows = append(rows, []any{fmt.Sprintf("s%d", i), fmt.Sprintf("F%d", i), fmt.Sprintf("L%d", i), 1900 + i})
	}
	for i := 6; i <= 7; i++ {
		rows = append(rows, []any{fmt.Sprintf("s%d", i), fmt.Sprintf("F%d", i), fmt.Sprintf("L%d", i), 1800})
	}
	for i := 8; i <= 10; i++ {
		rows = append(rows, []any{fmt.Sprintf("s%d", i), fmt.Sprintf("NEW%d", i), fmt.Sprintf("X%d", i), 2000})
	}
	return table.MustNew([]string{"sup_id", "first_name", "last_name", "birth_year"}, rows...)
}

func battery() []criterion.Criterion {
	return []criterion.Criterion{
		tuple("exact", "first_name", "last_name", "birth_year"),
		tuple("names", "first_name", "last_name"),
		tuple("surname_year", "last_name", "birth_year"),
	}
}

func TestFullCycle(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	s0 := hundred(t)
	s1, err := reference.Attach(ctx, s0, reference.Batch{Name: "survey", IDColumn: "sup_id", Table: tenBatch()})
	require.NoError(t, err)
	assert.Equal(t, reference.Attached, s1.Stage())
	assert.Equal(t, reference.Seeded, s0.Stage(), "earlier snapshots are untouched")

	s2, err := reference.LoopMerge(ctx, s1, battery()...)
	require.NoError(t, err)

	rep := s2.LoopReport()
	require.Len(t, rep.Criteria, 3)
	var counts []int
	for _, c := range rep.Criteria {
		counts = append(counts, c.Pairs)
	}
	assert.Equal(t, []int{5, 2, 0}, counts)
	assert.Equal(t, 7, rep.Pairs)
	assert.InDelta(t, 70.0, rep.SupPercent(), 0.001)
	assert.InDelta(t, 7.0, rep.RefPercent(), 0.001)

	merged := s2.Merged()
	require.Equal(t, 7, merged.Len())
	for i := 0; i < 5; i++ {
		assert.Equal(t, "first_name-last_name-birth_year", merged.Value(i, "matched_on"))
	}
	for i := 5; i < 7; i++ {
		assert.Equal(t, "first_name-last_name", merged.Value(i, "matched_on"))
	}
	ref, sup := s2.Pools()
	assert.Equal(t, 93, ref.CountDistinct("uid"))
	assert.Equal(t, 3, sup.Len())

	s3, err := reference.FoldIn(ctx, s2, reference.FoldOptions{KeepUnmerged: true})
	require.NoError(t, err)
	fold := s3.FoldReport()
	assert.Equal(t, 7, fold.Matched)
	assert.Equal(t, 3, fold.Minted)
	assert.Equal(t, int64(101), fold.FirstMinted)
	assert.Equal(t, int64(103), fold.LastMinted)
	assert.Equal(t, 110, s3.Canonical().Len())
	assert.NoError(t, s3.Canonical().CheckDense("uid"))
	assert.Equal(t, []string{"pid", "sup_id"}, s3.IDColumns())

	cw, err := reference.Crosswalk(s3)
	require.NoError(t, err)
	assert.Equal(t, tenBatch().Len(), cw.Len())
	assert.Equal(t, append(tenBatch().Columns(), "uid"), cw.Columns())
	want := []int64{1, 2, 3, 4, 5, 6, 7, 101, 102, 103}
	if diff := cmp.Diff(want, ints(cw.Column("uid"))); diff != "" {
		t.Errorf("crosswalk uids mismatch (-want +got):\n%s", diff)
	}

	assert.True(t, tl.ContainsAll("Batch attached", "Criterion merged", "Batch folded in"))
}

func TestFoldInDropsUnmerged(t *testing.T) {
	ctx := context.Background()
	s, err := reference.Attach(ctx, hundred(t), reference.Batch{Name: "survey", IDColumn: "sup_id", Table: tenBatch()})
	require.NoError(t, err)
	s, err = reference.LoopMerge(ctx, s, battery()...)
	require.NoError(t, err)
	s, err = reference.FoldIn(ctx, s, reference.FoldOptions{})
	require.NoError(t, err)

	assert.Equal(t, 107, s.Canonical().Len())
	assert.Equal(t, int64(100), s.Canonical().MaxID("uid"))

	cw, err := reference.Crosswalk(s)
	require.NoError(t, err)
	assert.Equal(t, 10, cw.Len())
	assert.Nil(t, cw.Value(9, "uid"))
}

func TestOneToOne(t *testing.T) {
	canonical := table.MustNew([]string{"pid", "last_name", "gender"},
		[]any{"p1", "JONES", "M"},
		[]any{"p2", "SMITH", "F"},
	)
	batch := table.MustNew([]string{"sid", "last_name", "gender"},
		[]any{"a", "JONES", "M"},
		[]any{"b", "BROWN", "M"},
	)
	crit := []criterion.Criterion{tuple("surname", "last_name"), tuple("gender", "gender")}

	tests := []struct {
		name     string
		oneToOne bool
		want     [][]any
	}{
		{"one to one shrinks the reference pool", true, [][]any{{int64(1), "a", "last_name"}}},
		{"many to one keeps the reference pool", false, [][]any{{int64(1), "a", "last_name"}, {int64(1), "b", "gender"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, err := reference.Seed(ctx, canonical, "pid", "uid")
			require.NoError(t, err)
			s, err = reference.Attach(ctx, s, reference.Batch{Name: "b", IDColumn: "sid", Table: batch, OneToOne: tt.oneToOne})
			require.NoError(t, err)
			s, err = reference.LoopMerge(ctx, s, crit...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Merged().Records())

			ref, _ := s.Pools()
			assert.Equal(t, []int64{2}, ints(ref.Column("uid")))
		})
	}
}

func TestDuplicateLinksAreFatal(t *testing.T) {
	dupes := criterion.Criterion{Name: "loose", Custom: [][]string{{"last_name"}}, AllowDuplicates: true}

	tests := []struct {
		name      string
		canonical [][]any
		batch     [][]any
		oneToOne  bool
		side      string
	}{
		{
			name:      "supplemental row linked twice",
			canonical: [][]any{{"p1", "JONES"}, {"p2", "JONES"}},
			batch:     [][]any{{"a", "JONES"}},
			side:      "supplemental",
		},
		{
			name:      "entity linked twice in a one to one batch",
			canonical: [][]any{{"p1", "JONES"}},
			batch:     [][]any{{"a", "JONES"}, {"b", "JONES"}},
			oneToOne:  true,
			side:      "reference",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, err := reference.Seed(ctx, table.MustNew([]string{"pid", "last_name"}, tt.canonical...), "pid", "uid")
			require.NoError(t, err)
			s, err = reference.Attach(ctx, s, reference.Batch{
				Name: "b", IDColumn: "sid", OneToOne: tt.oneToOne,
				Table: table.MustNew([]string{"sid", "last_name"}, tt.batch...),
			})
			require.NoError(t, err)

			_, err = reference.LoopMerge(ctx, s, dupes)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrInvariant)
			var me *errors.MergeError
			require.ErrorAs(t, err, &me)
			assert.Equal(t, tt.side, me.Side)
			assert.Equal(t, "loose", me.Criterion)
		})
	}

	t.Run("many to one is allowed", func(t *testing.T) {
		ctx := context.Background()
		s, err := reference.Seed(ctx, table.MustNew([]string{"pid", "last_name"}, []any{"p1", "JONES"}), "pid", "uid")
		require.NoError(t, err)
		s, err = reference.Attach(ctx, s, reference.Batch{
			Name: "b", IDColumn: "sid",
			Table: table.MustNew([]string{"sid", "last_name"}, []any{"a", "JONES"}, []any{"b", "JONES"}),
		})
		require.NoError(t, err)
		s, err = reference.LoopMerge(ctx, s, dupes)
		require.NoError(t, err)
		s, err = reference.FoldIn(ctx, s, reference.FoldOptions{KeepUnmerged: true})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 1, 1}, ints(s.Canonical().Column("uid")))
	})
}

func TestSameEntityAcrossBatches(t *testing.T) {
	ctx := context.Background()
	s, err := reference.Seed(ctx, table.MustNew([]string{"pid", "first_name", "last_name"},
		[]any{"p1", "BOB", "JONES"},
		[]any{"p2", "ANN", "SMITH"},
	), "pid", "uid")
	require.NoError(t, err)

	names := tuple("names", "first_name", "last_name")
	cycle := func(s *reference.State, idCol string, rows ...[]any) *reference.State {
		t.Helper()
		b := reference.Batch{Name: idCol, IDColumn: idCol, Table: table.MustNew([]string{idCol, "first_name", "last_name"}, rows...)}
		s, err := reference.Attach(ctx, s, b)
		require.NoError(t, err)
		s, err = reference.LoopMerge(ctx, s, names)
		require.NoError(t, err)
		s, err = reference.FoldIn(ctx, s, reference.FoldOptions{KeepUnmerged: true})
		require.NoError(t, err)
		return s
	}

	s = cycle(s, "sid", []any{"s1", "BOB", "JONES"}, []any{"s2", "EVE", "BLACK"})
	s = cycle(s, "tid", []any{"t1", "BOB", "JONES"}, []any{"t2", "EVE", "BLACK"})

	assert.Equal(t, 6, s.Canonical().Len())
	assert.Equal(t, []int64{1, 2, 1, 3, 1, 3}, ints(s.Canonical().Column("uid")))
	assert.NoError(t, s.Validate())

	cw, err := reference.Crosswalk(s)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ints(cw.Column("uid")))
}

func TestStageOrder(t *testing.T) {
	ctx := context.Background()
	seeded := hundred(t)
	attached, err := reference.Attach(ctx, seeded, reference.Batch{Name: "b", IDColumn: "sup_id", Table: tenBatch()})
	require.NoError(t, err)
	merged, err := reference.LoopMerge(ctx, attached)
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
	}{
		{"merge before attach", func() error { _, err := reference.LoopMerge(ctx, seeded); return err }},
		{"fold before merge", func() error { _, err := reference.FoldIn(ctx, attached, reference.FoldOptions{}); return err }},
		{"crosswalk before fold", func() error { _, err := reference.Crosswalk(merged); return err }},
		{"attach twice", func() error {
			_, err := reference.Attach(ctx, attached, reference.Batch{Name: "b", IDColumn: "x", Table: tenBatch()})
			return err
		}},
		{"consolidate mid cycle", func() error { _, _, err := reference.Consolidate(ctx, merged, nil); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), errors.ErrInvalidStage)
		})
	}
}

func TestAttachValidation(t *testing.T) {
	ctx := context.Background()
	s := hundred(t)

	_, err := reference.Attach(ctx, s, reference.Batch{Name: "again", IDColumn: "pid", Table: tenBatch()})
	assert.ErrorIs(t, err, errors.ErrInvalidInput, "batch id column already in the canonical table")

	withUID := tenBatch().WithColumn("uid", func(table.Row) any { return 1 })
	_, err = reference.Attach(ctx, s, reference.Batch{Name: "uid", IDColumn: "sup_id", Table: withUID})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = reference.Attach(ctx, s, reference.Batch{Name: "missing", IDColumn: "nope", Table: tenBatch()})
	assert.Error(t, err)
}

func TestConsolidate(t *testing.T) {
	ctx := context.Background()
	seed := table.MustNew([]string{"pid"}, []any{"a"}, []any{"b"}, []any{"c"}, []any{"d"}, []any{"e"})
	s, err := reference.Seed(ctx, seed, "pid", "uid")
	require.NoError(t, err)

	out, mapping, err := reference.Consolidate(ctx, s, []reference.Pair{{A: 1, B: 3}, {A: 3, B: 4}})
	require.NoError(t, err)
	assert.Equal(t, map[int64]int64{1: 1, 2: 2, 3: 1, 4: 1, 5: 3}, mapping)
	assert.Equal(t, []int64{1, 2, 1, 1, 3}, ints(out.Canonical().Column("uid")))
	assert.NoError(t, out.Canonical().CheckDense("uid"))
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, ints(s.Canonical().Column("uid")), "input snapshot unchanged")

	t.Run("unknown id", func(t *testing.T) {
		_, _, err := reference.Consolidate(ctx, s, []reference.Pair{{A: 1, B: 9}})
		assert.ErrorIs(t, err, errors.ErrNotFound)
	})
	t.Run("no pairs", func(t *testing.T) {
		_, mapping, err := reference.Consolidate(ctx, s, nil)
		require.NoError(t, err)
		assert.Equal(t, map[int64]int64{1: 1, 2: 2, 3: 3, 4: 4, 5: 5}, mapping)
	})
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		rows    [][]any
		wantErr error
	}{
		{"dense", [][]any{{1, "a", nil}, {2, "b", nil}, {1, nil, "x"}}, nil},
		{"gap", [][]any{{1, "a", nil}, {3, "b", nil}}, errors.ErrInvariant},
		{"two ids on one row", [][]any{{1, "a", "x"}}, errors.ErrInvariant},
		{"batch id on two entities", [][]any{{1, "a", nil}, {2, "a", nil}}, errors.ErrInvariant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical := table.MustNew([]string{"uid", "pid", "sid"}, tt.rows...)
			s, err := reference.Load(canonical, "uid", "pid", "sid")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, reference.Seeded, s.Stage())
		})
	}
}

func TestReports(t *testing.T) {
	lr := &reference.LoopReport{
		Batch: "survey", RefEntities: 100, SupEntities: 10, Pairs: 7, RefMatched: 7, SupMatched: 7,
		Criteria: []reference.CriterionReport{{Criterion: "exact", Pairs: 5, RefMatched: 5, SupMatched: 5, RefEntities: 100, SupEntities: 10}},
	}
	assert.Contains(t, lr.String(), "batch survey: 7 pairs, reference 7.0% of 100, batch 70.0% of 10")
	assert.Contains(t, lr.String(), "exact: 5 pairs (reference 5.0%, batch 50.0%)")

	fr := &reference.FoldReport{Batch: "survey", Matched: 7, Minted: 3, FirstMinted: 101, LastMinted: 103, Appended: 10}
	assert.Equal(t, "batch survey: 7 matched, 3 new entities (101-103), 10 rows appended", fr.String())
	assert.Equal(t, 0.0, reference.CriterionReport{}.RefPercent())
}
