// Package criterion implements replayable matching rules.
//
// A Criterion lists logical attributes, each with an ordered list of
// acceptable concrete columns, and optional custom column tuples. Applying it
// joins two pools on every generated tuple in turn, most specific first,
// removing matched rows before the next tuple is tried.
package criterion

import (
	"context"
	"fmt"

	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Attribute is a logical attribute and the concrete columns that may stand in
// for it. An empty choice makes the attribute optional.
type Attribute struct {
	Name    string
	Choices []string
}

// Criterion is one named matching rule.
type Criterion struct {
	Name       string
	Attributes []Attribute
	// Custom tuples are tried after the generated ones.
	Custom [][]string
	// Query applies to both pools; RefFilter and SupFilter to one each.
	Query     Filter
	RefFilter Filter
	SupFilter Filter
	// PostFilter reshapes the union of all tuples' pairs.
	PostFilter PostFilter
	// RetainRef and RetainSup keep matched rows in this criterion's pools
	// for its later tuples, allowing deliberate many-to-one matches.
	RetainRef bool
	RetainSup bool
	// AllowDuplicates skips deduplicating each side by the tuple.
	AllowDuplicates bool
	// MaxTuples caps generated tuples; zero means constants.DefaultMaxTuples.
	MaxTuples int
}

// Input is the pair of pools a criterion runs against.
type Input struct {
	Ref, Sup     *table.Table
	RefID, SupID string
}

// TupleCount records how many pairs one tuple produced.
type TupleCount struct {
	Label string
	Pairs int
}

// Result holds the pairs a criterion produced.
type Result struct {
	// Pairs has columns RefID, SupID and matched_on.
	Pairs  *table.Table
	Tuples []TupleCount
}

// Apply runs the criterion against in.
func (c Criterion) Apply(ctx context.Context, in Input) (*Result, error) {
	ctx = logging.WithCriterion(ctx, c.Name)
	logger := logging.FromContext(ctx)

	if in.RefID == "" || in.SupID == "" || in.RefID == in.SupID {
		return nil, errors.NewValidationError("ids", in.RefID+"/"+in.SupID, "reference and supplemental id columns must be set and differ")
	}
	if err := in.Ref.Require("reference pool", in.RefID); err != nil {
		return nil, err
	}
	if err := in.Sup.Require("supplemental pool", in.SupID); err != nil {
		return nil, err
	}

	ref, err := c.filter(ctx, in.Ref, "reference", c.Query, c.RefFilter)
	if err != nil {
		return nil, err
	}
	sup, err := c.filter(ctx, in.Sup, "supplemental", c.Query, c.SupFilter)
	if err != nil {
		return nil, err
	}

	pairCols := []string{in.RefID, in.SupID, constants.MatchedOnColumn}
	res := &Result{}
	var found []*table.Table
	for _, tuple := range c.Tuples(ctx, ref, sup) {
		if tuple.contains(in.RefID) || tuple.contains(in.SupID) {
			logger.Warn().Str("tuple", tuple.Label()).Msg("Tuple includes an id column, skipping")
			continue
		}
		pairs, err := c.join(ref, sup, in, tuple)
		if err != nil {
			return nil, err
		}
		res.Tuples = append(res.Tuples, TupleCount{Label: tuple.Label(), Pairs: pairs.Len()})
		logger.Debug().
			Str("tuple", tuple.Label()).
			Int("pairs", pairs.Len()).
			Int("ref_pool", ref.Len()).
			Int("sup_pool", sup.Len()).
			Msg("Tuple joined")
		if pairs.Len() == 0 {
			continue
		}
		found = append(found, pairs)
		if !c.RetainRef {
			if ref, err = ref.AntiJoin(pairs, in.RefID); err != nil {
				return nil, err
			}
		}
		if !c.RetainSup {
			if sup, err = sup.AntiJoin(pairs, in.SupID); err != nil {
				return nil, err
			}
		}
	}

	all := table.Empty(pairCols...)
	if len(found) > 0 {
		all = table.Concat(found...)
	}
	if all, err = all.Unique(in.RefID, in.SupID); err != nil {
		return nil, err
	}

	if c.PostFilter != nil {
		before := all.Len()
		all, err = c.PostFilter(PostInput{Ref: in.Ref, Sup: in.Sup, RefID: in.RefID, SupID: in.SupID, Pairs: all})
		if err != nil {
			return nil, fmt.Errorf("criterion %s post filter: %w", c.Name, err)
		}
		if err := all.Require("post filter output", pairCols...); err != nil {
			return nil, err
		}
		logger.Debug().Int("before", before).Int("after", all.Len()).Msg("Post filter applied")
	}

	res.Pairs = all
	return res, nil
}

func (c Criterion) filter(ctx context.Context, t *table.Table, side string, filters ...Filter) (*table.Table, error) {
	for _, f := range filters {
		if f == nil {
			continue
		}
		// Absent columns read as null: value comparisons drop every row while
		// null checks keep them.
		if missing := t.Missing(columns(f)...); len(missing) > 0 {
			logging.FromContext(ctx).Warn().
				Str("side", side).
				Strs("missing", missing).
				Msg("Filter columns absent, treating them as null")
		}
		t = t.Filter(f.Match)
	}
	return t, nil
}

// join matches one tuple. Each side is reduced to keys that identify exactly
// one entity unless duplicates are allowed.
func (c Criterion) join(ref, sup *table.Table, in Input, tuple Tuple) (*table.Table, error) {
	r, err := side(ref, tuple, in.RefID, c.AllowDuplicates)
	if err != nil {
		return nil, err
	}
	s, err := side(sup, tuple, in.SupID, c.AllowDuplicates)
	if err != nil {
		return nil, err
	}
	joined, err := r.InnerJoin(s, tuple...)
	if err != nil {
		return nil, err
	}
	pairs, err := joined.Distinct(in.RefID, in.SupID)
	if err != nil {
		return nil, err
	}
	label := tuple.Label()
	return pairs.WithColumn(constants.MatchedOnColumn, func(table.Row) any { return label }), nil
}

func side(t *table.Table, tuple Tuple, id string, allowDuplicates bool) (*table.Table, error) {
	cols := append(append([]string(nil), tuple...), id)
	sel, err := t.DropNulls(tuple...).Distinct(cols...)
	if err != nil {
		return nil, err
	}
	if allowDuplicates {
		return sel, nil
	}
	unique, _, err := sel.Partition(tuple...)
	return unique, err
}
