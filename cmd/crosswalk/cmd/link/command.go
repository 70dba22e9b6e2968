// Package link implements the link command, which runs a plan end to end.
package link

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/crosswalk/cmd/application"
	"github.com/agentstation/crosswalk/cmd/crosswalk/cmd/shared"
	"github.com/agentstation/crosswalk/internal/report"
	"github.com/agentstation/crosswalk/pkg/plan"
)

// NewCommand creates the link command.
func NewCommand(app application.Application) *cobra.Command {
	var showTuples bool

	cmd := &cobra.Command{
		Use:     "link PLAN",
		GroupID: "core",
		Short:   "Link a batch into the canonical table",
		Args:    cobra.ExactArgs(1),
		Long: `Link runs a plan: it reads the batch, resolves conflicts inside it when the
plan has a conflict section, and then either seeds the canonical table (when
it does not exist yet) or replays the plan's merge criteria against it and
folds the batch in.

The canonical table is locked while the run is in flight. The crosswalk,
profile and markdown report are written to the paths named under output.`,
		Example: `  crosswalk link plans/2019-roster.yaml
  crosswalk link plans/2019-roster.yaml --dry-run
  crosswalk link plans/2019-roster.yaml --answers answers.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}
			res, err := client.Link(cmd.Context(), p)
			if err != nil {
				return err
			}

			if shared.Machine(app) {
				return shared.Print(app, res.Run)
			}
			if err := shared.Print(app, report.Summary(res.Run)); err != nil {
				return err
			}
			if res.Run.Loop == nil || len(res.Run.Loop.Criteria) == 0 {
				return nil
			}
			if err := shared.Print(app, report.Criteria(res.Run.Loop)); err != nil {
				return err
			}
			if showTuples {
				return shared.Print(app, report.Tuples(res.Run.Loop))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showTuples, "tuples", false, "also print pairs per column tuple")
	return cmd
}
