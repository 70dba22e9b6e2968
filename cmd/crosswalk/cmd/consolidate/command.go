// Package consolidate implements the consolidate command, which merges
// entities an operator has confirmed are the same.
package consolidate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentstation/crosswalk/cmd/application"
	"github.com/agentstation/crosswalk/cmd/crosswalk/cmd/shared"
	"github.com/agentstation/crosswalk/internal/output"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/reference"
)

// NewCommand creates the consolidate command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		pairs  []string
		idCols []string
	)

	cmd := &cobra.Command{
		Use:     "consolidate CANONICAL",
		GroupID: "management",
		Short:   "Merge entities known to be the same",
		Args:    cobra.ExactArgs(1),
		Long: `Consolidate merges each pair of Entity IDs, and everything connected to them
through other pairs, into one entity. IDs are then renumbered densely, ordered
by the smallest original ID of each merged group.

This is the only way Entity IDs change after they are minted.`,
		Example: `  crosswalk consolidate canonical.csv --pair 3,17 --pair 17,42 --id-columns pid,sid`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := ParsePairs(pairs)
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}
			mapping, err := client.Consolidate(cmd.Context(), args[0], idCols, parsed)
			if err != nil {
				return err
			}
			if shared.Machine(app) {
				return shared.Print(app, mapping)
			}
			return shared.Print(app, changes(mapping))
		},
	}

	cmd.Flags().StringArrayVar(&pairs, "pair", nil, "two entity ids to merge, as A,B (repeatable)")
	cmd.Flags().StringSliceVar(&idCols, "id-columns", nil, "intra-batch ID columns of the canonical table")
	_ = cmd.MarkFlagRequired("pair")

	return cmd
}

// ParsePairs parses "A,B" pairs of entity ids.
func ParsePairs(raw []string) ([]reference.Pair, error) {
	out := make([]reference.Pair, 0, len(raw))
	for _, r := range raw {
		parts := strings.Split(r, ",")
		if len(parts) != 2 {
			return nil, errors.NewValidationError("pair", r, "expected two ids as A,B")
		}
		a, errA := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		b, errB := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if errA != nil || errB != nil {
			return nil, errors.NewValidationError("pair", r, "ids must be integers")
		}
		out = append(out, reference.Pair{A: a, B: b})
	}
	return out, nil
}

// changes lays out the ids that moved.
func changes(mapping map[int64]int64) output.Data {
	d := output.Data{
		Headers:         []string{"Old ID", "New ID"},
		ColumnAlignment: []output.Align{output.AlignRight, output.AlignRight},
	}
	old := make([]int64, 0, len(mapping))
	for id, next := range mapping {
		if id != next {
			old = append(old, id)
		}
	}
	sort.Slice(old, func(i, j int) bool { return old[i] < old[j] })
	for _, id := range old {
		d.Rows = append(d.Rows, []string{fmt.Sprint(id), fmt.Sprint(mapping[id])})
	}
	return d
}
