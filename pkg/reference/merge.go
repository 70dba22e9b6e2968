package reference

import (
	"context"

	"github.com/agentstation/crosswalk/pkg/criterion"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// LoopMerge runs a battery of criteria in order against the attached pools.
//
// Matched supplemental rows always leave the supplemental pool; matched
// reference rows leave the reference pool only when the batch is one-to-one.
// A supplemental ID linked to two Entity IDs is always fatal. The
// reference-side duplicate check, an Entity ID linked to two batch IDs, runs
// only when Batch.OneToOne is set; other batches may carry several rows per
// entity and skip it.
func LoopMerge(ctx context.Context, s *State, criteria ...criterion.Criterion) (*State, error) {
	if err := s.require("loop merge", Attached); err != nil {
		return nil, err
	}
	b := s.batch
	ctx = logging.WithBatch(logging.WithStage(ctx, Merged.String()), b.Name)
	logger := logging.FromContext(ctx)

	refPool, supPool, merged := s.refPool, s.supPool, s.merged
	report := &LoopReport{
		Batch:       b.Name,
		RefEntities: s.ref.Table.CountDistinct(s.uidCol),
		SupEntities: s.sup.Table.CountDistinct(b.IDColumn),
	}

	for _, c := range criteria {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := c.Apply(ctx, criterion.Input{Ref: refPool, Sup: supPool, RefID: s.uidCol, SupID: b.IDColumn})
		if err != nil {
			return nil, err
		}
		if err := checkLinks(c.Name, res.Pairs, s.uidCol, b.IDColumn, b.OneToOne); err != nil {
			return nil, err
		}

		merged = table.Concat(merged, res.Pairs)
		if supPool, err = supPool.AntiJoin(res.Pairs, b.IDColumn); err != nil {
			return nil, err
		}
		if b.OneToOne {
			if refPool, err = refPool.AntiJoin(res.Pairs, s.uidCol); err != nil {
				return nil, err
			}
		}

		cr := CriterionReport{
			Criterion:    c.Name,
			Pairs:        res.Pairs.Len(),
			RefMatched:   res.Pairs.CountDistinct(s.uidCol),
			SupMatched:   res.Pairs.CountDistinct(b.IDColumn),
			RefEntities:  report.RefEntities,
			SupEntities:  report.SupEntities,
			RefRemaining: refPool.CountDistinct(s.uidCol),
			SupRemaining: supPool.CountDistinct(b.IDColumn),
			Tuples:       res.Tuples,
		}
		report.Criteria = append(report.Criteria, cr)
		logger.Info().
			Str("criterion", c.Name).
			Int("pairs", cr.Pairs).
			Float64("ref_pct", cr.RefPercent()).
			Float64("sup_pct", cr.SupPercent()).
			Int("sup_remaining", cr.SupRemaining).
			Msg("Criterion merged")
	}

	if err := checkLinks("", merged, s.uidCol, b.IDColumn, b.OneToOne); err != nil {
		return nil, err
	}
	refPool, err := refPool.AntiJoin(merged, s.uidCol)
	if err != nil {
		return nil, err
	}

	report.Pairs = merged.Len()
	report.RefMatched = merged.CountDistinct(s.uidCol)
	report.SupMatched = merged.CountDistinct(b.IDColumn)

	n := s.next(Merged)
	n.refPool, n.supPool, n.merged = refPool, supPool, merged
	n.loop = report
	logger.Info().
		Int("pairs", report.Pairs).
		Float64("ref_pct", report.RefPercent()).
		Float64("sup_pct", report.SupPercent()).
		Msg("Loop merge complete")
	return n, nil
}

// checkLinks rejects supplemental IDs linked to more than one Entity ID, and
// for one-to-one batches Entity IDs linked to more than one supplemental ID.
func checkLinks(name string, pairs *table.Table, uidCol, idCol string, oneToOne bool) error {
	links, err := pairs.Distinct(uidCol, idCol)
	if err != nil {
		return err
	}
	if _, dup, err := links.Partition(idCol); err != nil {
		return err
	} else if dup.Len() > 0 {
		return errors.NewMergeError(name, "supplemental", formatIDs(dup.Column(idCol)))
	}
	if !oneToOne {
		return nil
	}
	if _, dup, err := links.Partition(uidCol); err != nil {
		return err
	} else if dup.Len() > 0 {
		return errors.NewMergeError(name, "reference", formatIDs(dup.Column(uidCol)))
	}
	return nil
}
