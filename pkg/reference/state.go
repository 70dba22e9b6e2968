// Package reference owns the growing canonical reference table.
//
// Each stage function takes a *State snapshot and returns a new one; a
// snapshot is never modified after it is returned. The stages form the cycle
//
//	seeded -> attached -> merged -> appended -> attached -> ...
//
// and calling a stage from the wrong snapshot returns an error wrapping
// errors.ErrInvalidStage.
package reference

import (
	"context"
	"fmt"

	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/dataset"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Stage is the position of a State in the ingestion cycle.
type Stage int

// Stages.
const (
	Seeded Stage = iota + 1
	Attached
	Merged
	Appended
)

func (s Stage) String() string {
	switch s {
	case Seeded:
		return "seeded"
	case Attached:
		return "attached"
	case Merged:
		return "merged"
	case Appended:
		return "appended"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// State is an immutable snapshot of the engine.
type State struct {
	stage     Stage
	uidCol    string
	idCols    []string
	canonical *table.Table

	batch   *Batch
	ref     *dataset.Dataset
	sup     *dataset.Dataset
	refPool *table.Table
	supPool *table.Table
	merged  *table.Table
	links   *table.Table
	loop    *LoopReport
	fold    *FoldReport
}

// Stage reports where the snapshot is in the cycle.
func (s *State) Stage() Stage { return s.stage }

// UIDColumn is the Entity ID column.
func (s *State) UIDColumn() string { return s.uidCol }

// IDColumns lists the intra-batch ID columns of every contributing batch.
func (s *State) IDColumns() []string { return append([]string(nil), s.idCols...) }

// Canonical is the canonical reference table.
func (s *State) Canonical() *table.Table { return s.canonical }

// Batch is the attached batch, or nil.
func (s *State) Batch() *Batch { return s.batch }

// Pools returns the unmerged reference and supplemental pools.
func (s *State) Pools() (ref, sup *table.Table) { return s.refPool, s.supPool }

// Merged holds the accumulated pairs: uid, batch ID and matched_on.
func (s *State) Merged() *table.Table { return s.merged }

// Links maps every batch ID folded in to its Entity ID.
func (s *State) Links() *table.Table { return s.links }

// LoopReport is the report of the last merge battery, or nil.
func (s *State) LoopReport() *LoopReport { return s.loop }

// FoldReport is the report of the last fold-in, or nil.
func (s *State) FoldReport() *FoldReport { return s.fold }

func (s *State) require(op string, want ...Stage) error {
	for _, w := range want {
		if s.stage == w {
			return nil
		}
	}
	names := make([]string, len(want))
	for i, w := range want {
		names[i] = w.String()
	}
	return &errors.StageError{Operation: op, Have: s.stage.String(), Want: names}
}

func (s *State) next(stage Stage) *State {
	n := *s
	n.stage = stage
	n.idCols = append([]string(nil), s.idCols...)
	return &n
}

// Seed starts a canonical table from a first batch, minting Entity IDs
// 1..N by first appearance of idCol.
func Seed(ctx context.Context, t *table.Table, idCol, uidCol string) (*State, error) {
	if uidCol == "" {
		uidCol = constants.DefaultUIDColumn
	}
	if err := t.Require("seed batch", idCol); err != nil {
		return nil, err
	}
	if t.Has(uidCol) {
		return nil, errors.NewValidationError("uid_column", uidCol, "seed batch already has column "+uidCol)
	}
	groups, err := t.GroupIndices(idCol)
	if err != nil {
		return nil, err
	}
	uids := make([]any, t.Len())
	for n, g := range groups {
		if table.IsNull(g.Key[0]) {
			return nil, errors.NewValidationError("id_column", idCol, fmt.Sprintf("%d seed rows have no %s", len(g.Rows), idCol))
		}
		for _, i := range g.Rows {
			uids[i] = int64(n + 1)
		}
	}
	withUID, err := t.WithValues(uidCol, uids)
	if err != nil {
		return nil, err
	}
	canonical, err := withUID.Select(append([]string{uidCol}, t.Columns()...)...)
	if err != nil {
		return nil, err
	}

	s := &State{stage: Seeded, uidCol: uidCol, idCols: []string{idCol}, canonical: canonical}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().
		Str("id_column", idCol).
		Int("rows", canonical.Len()).
		Int("entities", len(groups)).
		Msg("Canonical table seeded")
	return s, nil
}

// Load resumes from a stored canonical table. idCols names the intra-batch ID
// columns of the batches already folded in.
func Load(canonical *table.Table, uidCol string, idCols ...string) (*State, error) {
	if uidCol == "" {
		uidCol = constants.DefaultUIDColumn
	}
	if err := canonical.Require("canonical", append([]string{uidCol}, idCols...)...); err != nil {
		return nil, err
	}
	s := &State{stage: Seeded, uidCol: uidCol, idCols: append([]string(nil), idCols...), canonical: canonical}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the canonical invariants: Entity IDs are dense 1..N, every
// row carries at most one intra-batch ID, and no intra-batch ID links to more
// than one Entity ID.
func (s *State) Validate() error {
	if err := s.canonical.CheckDense(s.uidCol); err != nil {
		return err
	}
	for i := 0; i < s.canonical.Len(); i++ {
		n := 0
		for _, col := range s.idCols {
			if !table.IsNull(s.canonical.Value(i, col)) {
				n++
			}
		}
		if n > 1 {
			return errors.NewInvariantError("sparse_ids", fmt.Sprintf("canonical row %d carries %d batch ids", i, n))
		}
	}
	for _, col := range s.idCols {
		links, err := s.canonical.DropNulls(col).Distinct(col, s.uidCol)
		if err != nil {
			return err
		}
		_, dup, err := links.Partition(col)
		if err != nil {
			return err
		}
		if dup.Len() > 0 {
			return errors.NewMergeError("", col, formatIDs(dup.Column(col)))
		}
	}
	return nil
}

func formatIDs(vals []any) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range vals {
		s := table.Format(v)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
