package reference

import (
	"context"

	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/dataset"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Batch is a supplemental dataset to link against the canonical table.
type Batch struct {
	// Name labels the batch in logs and reports.
	Name string
	// IDColumn is the intra-batch ID column; it must not exist in the canonical table yet.
	IDColumn string
	// Table holds the batch rows as read.
	Table *table.Table
	// OneToOne forbids linking one Entity ID to two rows of this batch and
	// turns on the reference-side duplicate check in LoopMerge.
	OneToOne bool
	// Ref shapes the reference pool; Side and IDColumn are set by Attach.
	Ref dataset.Options
	// Sup shapes the supplemental pool; Side and IDColumn are set by Attach.
	Sup dataset.Options
}

// Attach wraps a batch and snapshots both unmerged pools.
func Attach(ctx context.Context, s *State, b Batch) (*State, error) {
	if err := s.require("attach", Seeded, Appended); err != nil {
		return nil, err
	}
	ctx = logging.WithBatch(logging.WithStage(ctx, Attached.String()), b.Name)
	if b.Table == nil || b.IDColumn == "" {
		return nil, errors.NewValidationError("batch", b.Name, "batch needs a table and an id column")
	}
	if s.canonical.Has(b.IDColumn) {
		return nil, errors.NewValidationError("id_column", b.IDColumn, "canonical table already has batch id column "+b.IDColumn)
	}
	if b.Table.Has(s.uidCol) {
		return nil, errors.NewValidationError("batch", s.uidCol, "batch already has the entity id column "+s.uidCol)
	}

	refOpts := b.Ref
	refOpts.Side, refOpts.IDColumn = dataset.Reference, s.uidCol
	ref, err := dataset.Wrap(ctx, s.canonical, refOpts)
	if err != nil {
		return nil, err
	}
	supOpts := b.Sup
	supOpts.Side, supOpts.IDColumn = dataset.Supplemental, b.IDColumn
	sup, err := dataset.Wrap(ctx, b.Table, supOpts)
	if err != nil {
		return nil, err
	}

	n := s.next(Attached)
	n.batch = &b
	n.ref, n.sup = ref, sup
	n.refPool, n.supPool = ref.Table, sup.Table
	n.merged = table.Empty(s.uidCol, b.IDColumn, constants.MatchedOnColumn)
	n.links, n.loop, n.fold = nil, nil, nil

	logging.FromContext(ctx).Info().
		Int("reference_entities", ref.Table.CountDistinct(s.uidCol)).
		Int("batch_rows", b.Table.Len()).
		Int("batch_entities", sup.Table.CountDistinct(b.IDColumn)).
		Int("unmergeable_rows", sup.Unmergeable).
		Msg("Batch attached")
	return n, nil
}
