package reference

import (
	"context"
	"fmt"

	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/logging"
	"github.com/agentstation/crosswalk/pkg/table"
)

// Pair names two Entity IDs that denote the same entity.
type Pair struct {
	A, B int64
}

// Consolidate coalesces whitelisted Entity IDs. IDs connected through any
// chain of pairs collapse to one, and the result is renumbered densely from 1
// in ascending order of the smallest ID in each group. The returned map sends
// every old Entity ID to its new one.
func Consolidate(ctx context.Context, s *State, pairs []Pair) (*State, map[int64]int64, error) {
	if err := s.require("consolidate", Seeded, Appended); err != nil {
		return nil, nil, err
	}
	sorted, err := s.canonical.Distinct(s.uidCol)
	if err != nil {
		return nil, nil, err
	}
	if sorted, err = sorted.SortBy(s.uidCol); err != nil {
		return nil, nil, err
	}

	known := make(map[int64]bool, sorted.Len())
	rows := make([][]any, 0, sorted.Len()+2*len(pairs))
	for _, v := range sorted.Column(s.uidCol) {
		id, _ := table.AsInt(v)
		known[id] = true
		rows = append(rows, []any{id, nil})
	}
	for k, p := range pairs {
		for _, id := range []int64{p.A, p.B} {
			if !known[id] {
				return nil, nil, fmt.Errorf("%w: entity id %d", errors.ErrNotFound, id)
			}
			rows = append(rows, []any{id, int64(k)})
		}
	}

	graph, err := table.New([]string{s.uidCol, "link"}, rows...)
	if err != nil {
		return nil, nil, err
	}
	labels, err := graph.Components(s.uidCol, "link")
	if err != nil {
		return nil, nil, err
	}
	mapping := make(map[int64]int64, sorted.Len())
	for i := 0; i < sorted.Len(); i++ {
		id, _ := table.AsInt(graph.Value(i, s.uidCol))
		mapping[id] = int64(labels[i])
	}

	canonical, err := s.canonical.WithValues(s.uidCol, remap(s.canonical.Column(s.uidCol), mapping))
	if err != nil {
		return nil, nil, err
	}
	n := s.next(s.stage)
	n.canonical = canonical
	if n.links != nil {
		if n.links, err = n.links.WithValues(s.uidCol, remap(n.links.Column(s.uidCol), mapping)); err != nil {
			return nil, nil, err
		}
	}
	if err := n.Validate(); err != nil {
		return nil, nil, err
	}

	before, after := sorted.Len(), canonical.CountDistinct(s.uidCol)
	logging.FromContext(ctx).Info().
		Int("pairs", len(pairs)).
		Int("entities_before", before).
		Int("entities_after", after).
		Msg("Entity IDs consolidated")
	return n, mapping, nil
}

func remap(vals []any, mapping map[int64]int64) []any {
	out := make([]any, len(vals))
	for i, v := range vals {
		id, ok := table.AsInt(v)
		if !ok {
			out[i] = v
			continue
		}
		out[i] = mapping[id]
	}
	return out
}
