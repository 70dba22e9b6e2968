package dataset_test

import (
	"context"
	"testing"

	"github.com/agentstation/crosswalk/pkg/dataset"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roster() *table.Table {
	return table.MustNew([]string{"officer_id", "first_name", "last_name", "birth_year", "star1", "star2", "mergeable"},
		[]any{10, "JOSÉ", "GARCÍA-LOPEZ", 1970, 111, 222, "Y"},
		[]any{11, "ANN", "SMITH", nil, nil, nil, nil},
		[]any{12, "CARL", "LEE", 1980, nil, 333, "N"},
		[]any{13, "DAVID", "KIM", 1985, 444, nil, true},
	)
}

func TestWrapShape(t *testing.T) {
	ds, err := dataset.Wrap(context.Background(), roster(), dataset.Options{
		Side:      dataset.Supplemental,
		IDColumn:  "officer_id",
		WideStubs: []string{"star"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, ds.Unmergeable)
	assert.Equal(t, 4, ds.Raw.Len())
	assert.Equal(t, []string{"officer_id", "first_name", "last_name", "birth_year", "mergeable", "star"}, ds.Table.Columns())

	got, err := ds.Table.Select("officer_id", "star")
	require.NoError(t, err)
	want := [][]any{
		{int64(10), int64(111)},
		{int64(10), int64(222)},
		{int64(11), nil},
		{int64(13), int64(444)},
	}
	if diff := cmp.Diff(want, got.Records()); diff != "" {
		t.Errorf("reshape mismatch (-want +got):\n%s", diff)
	}
}

func TestWrapMultipleStubsStayAligned(t *testing.T) {
	tb := table.MustNew([]string{"id", "star1", "unit1", "star2", "unit2"},
		[]any{1, 5, "A", nil, "B"},
	)
	ds, err := dataset.Wrap(context.Background(), tb, dataset.Options{IDColumn: "id", WideStubs: []string{"star", "unit"}})
	require.NoError(t, err)
	want := [][]any{
		{int64(1), int64(5), "A"},
		{int64(1), nil, "B"},
	}
	if diff := cmp.Diff(want, ds.Table.Records()); diff != "" {
		t.Errorf("reshape mismatch (-want +got):\n%s", diff)
	}
}

func TestWrapDerivationsAreSideScoped(t *testing.T) {
	derivations := []dataset.Derivation{
		dataset.TruncateName{Column: "first_name", To: "first_name_trunc", Length: 3},
		dataset.AgeFromBirthYear{Side: dataset.Reference, BirthYear: "birth_year", Age: "current_age", Year: 2020},
		dataset.AgeFromBirthYear{Side: dataset.Supplemental, BirthYear: "birth_year", Age: "current_age", Year: 2015},
		dataset.FoldAccents{Column: "last_name", To: "last_name_ascii"},
		dataset.HyphenPart{Column: "last_name_ascii", To: "last_name_first", Part: 0},
		dataset.HyphenPart{Column: "last_name_ascii", To: "last_name_last", Part: -1},
		dataset.CopyColumn{Side: dataset.Reference, From: "first_name", To: "alias"},
	}

	ref, err := dataset.Wrap(context.Background(), roster(), dataset.Options{
		Side: dataset.Reference, IDColumn: "officer_id", Derivations: derivations,
	})
	require.NoError(t, err)
	sup, err := dataset.Wrap(context.Background(), roster(), dataset.Options{
		Side: dataset.Supplemental, IDColumn: "officer_id", Derivations: derivations,
	})
	require.NoError(t, err)

	assert.Equal(t, "JOS", ref.Table.Value(0, "first_name_trunc"))
	assert.Equal(t, int64(50), ref.Table.Value(0, "current_age"))
	assert.Equal(t, int64(45), sup.Table.Value(0, "current_age"))
	assert.Nil(t, sup.Table.Value(1, "current_age"), "null birth year stays null")

	assert.Equal(t, "GARCIA-LOPEZ", ref.Table.Value(0, "last_name_ascii"))
	assert.Equal(t, "GARCIA", ref.Table.Value(0, "last_name_first"))
	assert.Equal(t, "LOPEZ", ref.Table.Value(0, "last_name_last"))
	assert.Equal(t, "SMITH", ref.Table.Value(1, "last_name_first"))

	assert.True(t, ref.Table.Has("alias"))
	assert.False(t, sup.Table.Has("alias"))
}

func TestWrapSkipsDerivationWithMissingSource(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	ds, err := dataset.Wrap(ctx, roster(), dataset.Options{
		IDColumn:    "officer_id",
		Derivations: []dataset.Derivation{dataset.BirthYearFromAge{Age: "age", BirthYear: "by", Year: 2020}},
	})
	require.NoError(t, err)
	assert.False(t, ds.Table.Has("by"))
	assert.True(t, tl.ContainsAll("Skipping derivation", "birth_year_from_age"))
}

func TestWrapAlwaysNullAndFill(t *testing.T) {
	tb := table.MustNew([]string{"uid", "first_name", "middle_initial"},
		[]any{1, "BOB", nil},
		[]any{1, "ROBERT", nil},
		[]any{2, "ANN", "M"},
		[]any{2, "ANN", nil},
	)
	ds, err := dataset.Wrap(context.Background(), tb, dataset.Options{
		Side:       dataset.Reference,
		IDColumn:   "uid",
		AlwaysNull: []string{"middle_initial"},
		Fill:       []string{"first_name", "middle_initial"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"uid", "first_name", "middle_initial", "middle_initial_always_null"}, ds.Table.Columns())
	want := [][]any{
		{int64(1), "BOB", nil, true},
		{int64(1), "ROBERT", nil, true},
		{int64(2), "ANN", "M", false},
	}
	if diff := cmp.Diff(want, ds.Table.Records()); diff != "" {
		t.Errorf("Wrap() mismatch (-want +got):\n%s", diff)
	}
}

func TestWrapValidation(t *testing.T) {
	ctx := context.Background()

	_, err := dataset.Wrap(ctx, roster(), dataset.Options{})
	assert.True(t, errors.IsValidationError(err))

	_, err = dataset.Wrap(ctx, roster(), dataset.Options{IDColumn: "uid"})
	assert.True(t, errors.IsSchemaDrift(err))

	nullID := table.MustNew([]string{"id"}, []any{nil})
	_, err = dataset.Wrap(ctx, nullID, dataset.Options{IDColumn: "id"})
	assert.True(t, errors.IsValidationError(err))

	clash := table.MustNew([]string{"id", "star", "star1"}, []any{1, 2, 3})
	_, err = dataset.Wrap(ctx, clash, dataset.Options{IDColumn: "id", WideStubs: []string{"star"}})
	assert.True(t, errors.IsValidationError(err))
}

func TestParseSide(t *testing.T) {
	s, err := dataset.ParseSide("ref")
	require.NoError(t, err)
	assert.Equal(t, dataset.Reference, s)

	s, err = dataset.ParseSide("")
	require.NoError(t, err)
	assert.Equal(t, dataset.Side(""), s)

	_, err = dataset.ParseSide("left")
	assert.Error(t, err)
}
