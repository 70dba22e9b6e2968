package reference

import (
	"context"
	"fmt"

	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// FoldOptions controls FoldIn.
type FoldOptions struct {
	// KeepUnmerged mints new Entity IDs for batch IDs nothing matched. When
	// false their rows are left out of the canonical table.
	KeepUnmerged bool
}

// FoldIn appends the merged batch to the canonical table. Matched batch IDs
// take their linked Entity ID; unmatched ones get max+1, max+2, ... in order
// of first appearance in the batch.
func FoldIn(ctx context.Context, s *State, opts FoldOptions) (*State, error) {
	if err := s.require("fold in", Merged); err != nil {
		return nil, err
	}
	b := s.batch
	ctx = logging.WithBatch(logging.WithStage(ctx, Appended.String()), b.Name)

	links, err := s.merged.Distinct(s.uidCol, b.IDColumn)
	if err != nil {
		return nil, err
	}
	rep := &FoldReport{Batch: b.Name, Matched: links.Len()}

	if opts.KeepUnmerged {
		unmatched, err := b.Table.DropNulls(b.IDColumn).AntiJoin(links, b.IDColumn)
		if err != nil {
			return nil, err
		}
		ids, err := unmatched.Distinct(b.IDColumn)
		if err != nil {
			return nil, err
		}
		next := s.canonical.MaxID(s.uidCol) + 1
		uids := make([]any, ids.Len())
		for i := range uids {
			uids[i] = next + int64(i)
		}
		minted, err := ids.WithValues(s.uidCol, uids)
		if err != nil {
			return nil, err
		}
		if minted.Len() > 0 {
			rep.Minted = minted.Len()
			rep.FirstMinted, rep.LastMinted = next, next+int64(minted.Len()-1)
		}
		add, err := minted.Select(s.uidCol, b.IDColumn)
		if err != nil {
			return nil, err
		}
		links = table.Concat(links, add)
	}

	rows, err := b.Table.InnerJoin(links, b.IDColumn)
	if err != nil {
		return nil, err
	}
	want, err := b.Table.SemiJoin(links, b.IDColumn)
	if err != nil {
		return nil, err
	}
	if rows.Len() != want.Len() {
		return nil, errors.NewInvariantError("row_count",
			fmt.Sprintf("fold-in produced %d rows for %d linked batch rows", rows.Len(), want.Len()))
	}
	rep.Appended = rows.Len()

	canonical := table.Concat(s.canonical, rows)
	if canonical.Len() != s.canonical.Len()+rows.Len() {
		return nil, errors.NewInvariantError("row_count", "canonical rows lost during fold-in")
	}

	n := s.next(Appended)
	n.canonical = canonical
	n.idCols = append(n.idCols, b.IDColumn)
	n.links = links
	n.fold = rep
	if err := n.Validate(); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Info().
		Int("matched", rep.Matched).
		Int("minted", rep.Minted).
		Int("appended_rows", rep.Appended).
		Int("canonical_rows", canonical.Len()).
		Msg("Batch folded in")
	return n, nil
}

// Crosswalk returns the folded-in batch exactly as given, with one added
// column carrying each row's Entity ID. Rows left out of the canonical table
// carry a null Entity ID.
func Crosswalk(s *State) (*table.Table, error) {
	if err := s.require("crosswalk", Appended); err != nil {
		return nil, err
	}
	out, err := s.batch.Table.LeftJoin(s.links, s.batch.IDColumn)
	if err != nil {
		return nil, err
	}
	if out.Len() != s.batch.Table.Len() {
		return nil, errors.NewInvariantError("row_count",
			fmt.Sprintf("crosswalk has %d rows, batch has %d", out.Len(), s.batch.Table.Len()))
	}
	return out, nil
}
