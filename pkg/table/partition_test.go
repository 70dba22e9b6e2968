package table_test

import (
	"testing"

	"github.com/agentstation/crosswalk/pkg/table"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition(t *testing.T) {
	unique, dup, err := officers().Partition("first_name", "last_name")
	require.NoError(t, err)

	assert.Equal(t, []any{int64(2), int64(4)}, unique.Column("id"))
	assert.Equal(t, []any{int64(1), int64(3)}, dup.Column("id"), "every row of a repeated key is duplicated")
}

func TestFill(t *testing.T) {
	tb := table.MustNew([]string{"uid", "first_name", "last_name", "race"},
		[]any{1, "ROBERT", "JONES", nil},
		[]any{1, "BOB", "JONES", nil},
		[]any{2, "ANN", "SMITH", "WHITE"},
		[]any{2, "ANN", "SMITH-LEE", nil},
	)

	filled, err := tb.Fill("uid", "first_name", "last_name", "race")
	require.NoError(t, err)

	want := [][]any{
		{int64(1), "ROBERT", "JONES", nil},
		{int64(1), "BOB", "JONES", nil},
		{int64(2), "ANN", "SMITH", "WHITE"},
		{int64(2), "ANN", "SMITH-LEE", "WHITE"},
	}
	if diff := cmp.Diff(want, filled.Records()); diff != "" {
		t.Errorf("Fill() mismatch (-want +got):\n%s", diff)
	}
}

func TestComponents(t *testing.T) {
	tb := table.MustNew([]string{"a", "b"},
		[]any{"x", nil},
		[]any{"x", 1},
		[]any{"y", 1},
		[]any{"z", nil},
		[]any{nil, nil},
		[]any{"z", 2},
	)
	labels, err := tb.Components("a", "b")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 2, 3, 2}, labels)
}

func TestComponentsSeparateColumnNamespaces(t *testing.T) {
	tb := table.MustNew([]string{"a", "b"},
		[]any{1, nil},
		[]any{nil, 1},
	)
	labels, err := tb.Components("a", "b")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, labels)
}

func TestDisjointSet(t *testing.T) {
	ds := table.NewDisjointSet(4)
	assert.True(t, ds.Union(0, 1))
	assert.False(t, ds.Union(1, 0))
	assert.True(t, ds.Union(2, 3))
	assert.False(t, ds.Connected(0, 3))

	n := ds.Add()
	assert.Equal(t, 5, ds.Len())
	ds.Union(n, 3)
	ds.Union(1, n)
	assert.True(t, ds.Connected(0, 2))
}
