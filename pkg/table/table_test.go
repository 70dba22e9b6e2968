package table_test

import (
	"testing"
	"time"

	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/table"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func officers() *table.Table {
	return table.MustNew([]string{"id", "first_name", "last_name", "star"},
		[]any{1, "BOB", "JONES", 101},
		[]any{2, "ANN", "SMITH", nil},
		[]any{3, "BOB", "JONES", 102},
		[]any{4, "CARL", "LEE", 103},
	)
}

func TestNew(t *testing.T) {
	t.Run("normalizes cells", func(t *testing.T) {
		tb := table.MustNew([]string{"a", "b"}, []any{1, float32(2.5)})
		assert.Equal(t, int64(1), tb.Value(0, "a"))
		assert.Equal(t, 2.5, tb.Value(0, "b"))
	})

	t.Run("rejects duplicate columns", func(t *testing.T) {
		_, err := table.New([]string{"a", "a"})
		assert.True(t, errors.IsValidationError(err))
	})

	t.Run("rejects ragged rows", func(t *testing.T) {
		_, err := table.New([]string{"a", "b"}, []any{1})
		assert.True(t, errors.IsValidationError(err))
	})
}

func TestSelectDropRename(t *testing.T) {
	tb := officers()

	sel, err := tb.Select("last_name", "id")
	require.NoError(t, err)
	assert.Equal(t, []string{"last_name", "id"}, sel.Columns())
	assert.Equal(t, "JONES", sel.Value(0, "last_name"))

	_, err = tb.Select("missing")
	assert.True(t, errors.IsSchemaDrift(err))

	assert.Equal(t, []string{"id", "last_name"}, tb.Drop("first_name", "star", "nope").Columns())

	renamed, err := tb.Rename(map[string]string{"star": "star_no"})
	require.NoError(t, err)
	assert.True(t, renamed.Has("star_no"))
	assert.False(t, renamed.Has("star"))
	assert.True(t, tb.Has("star"), "source table is unchanged")

	_, err = tb.Rename(map[string]string{"star": "id"})
	assert.Error(t, err)
}

func TestFilterAndDropNulls(t *testing.T) {
	tb := officers()
	bobs := tb.Filter(func(r table.Row) bool { return r.Get("first_name") == "BOB" })
	assert.Equal(t, 2, bobs.Len())

	assert.Equal(t, 3, tb.DropNulls("star").Len())
	assert.Equal(t, 0, tb.DropNulls("absent").Len())
}

func TestWithColumn(t *testing.T) {
	tb := officers()
	out := tb.WithColumn("initial", func(r table.Row) any {
		return r.Get("first_name").(string)[:1]
	})
	assert.Equal(t, []any{"B", "A", "B", "C"}, out.Column("initial"))
	assert.False(t, tb.Has("initial"))

	replaced := out.WithColumn("initial", func(table.Row) any { return nil })
	assert.Equal(t, len(out.Columns()), len(replaced.Columns()))
	assert.Nil(t, replaced.Value(0, "initial"))
	assert.Equal(t, "B", out.Value(0, "initial"))

	_, err := tb.WithValues("x", []any{1})
	assert.Error(t, err)
}

func TestUniqueDistinctSort(t *testing.T) {
	tb := officers()

	u, err := tb.Unique("first_name", "last_name")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(4)}, u.Column("id"))

	d, err := tb.Distinct("last_name")
	require.NoError(t, err)
	assert.Equal(t, []any{"JONES", "SMITH", "LEE"}, d.Column("last_name"))

	s, err := tb.SortBy("star")
	require.NoError(t, err)
	assert.Equal(t, []any{int64(2), int64(1), int64(3), int64(4)}, s.Column("id"), "null sorts first")
}

func TestConcat(t *testing.T) {
	a := table.MustNew([]string{"uid", "x"}, []any{1, "a"})
	b := table.MustNew([]string{"uid", "y"}, []any{2, "b"})
	out := table.Concat(a, nil, b)

	assert.Equal(t, []string{"uid", "x", "y"}, out.Columns())
	want := [][]any{{int64(1), "a", nil}, {int64(2), nil, "b"}}
	if diff := cmp.Diff(want, out.Records()); diff != "" {
		t.Errorf("Concat() mismatch (-want +got):\n%s", diff)
	}
}

func TestJoins(t *testing.T) {
	left := table.MustNew([]string{"k", "l"},
		[]any{1, "a"},
		[]any{2, "b"},
		[]any{nil, "c"},
	)
	right := table.MustNew([]string{"k", "r"},
		[]any{1, "x"},
		[]any{1, "y"},
		[]any{nil, "z"},
	)

	tests := []struct {
		name string
		join func() (*table.Table, error)
		want [][]any
	}{
		{
			name: "inner matches null to null",
			join: func() (*table.Table, error) { return left.InnerJoin(right, "k") },
			want: [][]any{
				{int64(1), "a", "x"},
				{int64(1), "a", "y"},
				{nil, "c", "z"},
			},
		},
		{
			name: "left keeps unmatched",
			join: func() (*table.Table, error) { return left.LeftJoin(right, "k") },
			want: [][]any{
				{int64(1), "a", "x"},
				{int64(1), "a", "y"},
				{int64(2), "b", nil},
				{nil, "c", "z"},
			},
		},
		{
			name: "anti join",
			join: func() (*table.Table, error) { return left.AntiJoin(right, "k") },
			want: [][]any{{int64(2), "b"}},
		},
		{
			name: "semi join",
			join: func() (*table.Table, error) { return left.SemiJoin(right, "k") },
			want: [][]any{{int64(1), "a"}, {nil, "c"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.join()
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got.Records()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("collision is rejected", func(t *testing.T) {
		_, err := left.InnerJoin(left, "k")
		assert.Error(t, err)
	})

	t.Run("missing key column", func(t *testing.T) {
		_, err := left.InnerJoin(right, "l")
		assert.True(t, errors.IsSchemaDrift(err))
	})
}

func TestGroupIndices(t *testing.T) {
	groups, err := officers().GroupIndices("first_name")
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, []any{"BOB"}, groups[0].Key)
	assert.Equal(t, []int{0, 2}, groups[0].Rows)
	assert.Equal(t, []int{3}, groups[2].Rows)
}

func TestValues(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b any
		want int
	}{
		{"null equals null", nil, nil, 0},
		{"null sorts first", nil, int64(1), -1},
		{"int and float coerce", int64(2), 2.0, 0},
		{"float ordering", 1.5, int64(2), -1},
		{"strings", "ANN", "BOB", -1},
		{"dates", day, day.AddDate(0, 0, 1), -1},
		{"bools", true, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Compare(tt.a, tt.b))
		})
	}

	assert.Equal(t, table.Key(int64(3)), table.Key(3.0))
	assert.NotEqual(t, table.Key("3"), table.Key(int64(3)))
	assert.NotEqual(t, table.Key(nil), table.Key(""))
	assert.Equal(t, "2024-03-01", table.Format(day))
	assert.Equal(t, "", table.Format(nil))
	assert.Equal(t, "2.5", table.Format(2.5))
}

func TestCheckDense(t *testing.T) {
	tests := []struct {
		name  string
		ids   []any
		check string
	}{
		{name: "dense", ids: []any{1, 2, 2, 3}},
		{name: "empty", ids: nil},
		{name: "gap", ids: []any{1, 3}, check: "dense_ids"},
		{name: "null", ids: []any{1, nil}, check: "null_id"},
		{name: "zero", ids: []any{0, 1}, check: "dense_ids"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := make([][]any, len(tt.ids))
			for i, id := range tt.ids {
				rows[i] = []any{id}
			}
			err := table.MustNew([]string{"uid"}, rows...).CheckDense("uid")
			if tt.check == "" {
				assert.NoError(t, err)
				return
			}
			var inv *errors.InvariantError
			require.ErrorAs(t, err, &inv)
			assert.Equal(t, tt.check, inv.Check)
		})
	}

	assert.Equal(t, int64(4), officers().MaxID("id"))
	assert.Equal(t, int64(0), table.Empty("uid").MaxID("uid"))
}
