// Package resolve implements the resolve command, which assigns provisional
// IDs inside one batch.
package resolve

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/crosswalk/cmd/application"
	"github.com/agentstation/crosswalk/cmd/crosswalk/cmd/shared"
	"github.com/agentstation/crosswalk/pkg/conflict"
	"github.com/agentstation/crosswalk/pkg/constants"
	"github.com/agentstation/crosswalk/pkg/tableio"
)

// Flags holds the resolve command flags.
type Flags struct {
	Identity      []string
	Conflict      []string
	IDColumn      string
	Policy        string
	Fallback      string
	NullsConflict bool
	Encoding      string
	Write         string
}

// NewCommand creates the resolve command.
func NewCommand(app application.Application) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "resolve BATCH",
		GroupID: "core",
		Short:   "Assign provisional IDs within a batch",
		Args:    cobra.ExactArgs(1),
		Long: `Resolve groups the rows of a batch by its identity columns. Rows that share
identity columns but disagree on a conflict column are split; groups that
cannot be split automatically are settled by the policy.

With --policy manual each undecided group is shown on the terminal, or
answered from --answers. Without either the fallback policy applies.`,
		Example: `  crosswalk resolve roster.csv --identity first_name,last_name --conflict birth_year
  crosswalk resolve roster.csv --identity first_name,last_name --conflict birth_year \
      --policy manual --write roster.resolved.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := conflict.ParsePolicy(flags.Policy)
			if err != nil {
				return err
			}
			fallback, err := conflict.ParsePolicy(flags.Fallback)
			if err != nil {
				return err
			}
			batch, err := tableio.ReadFile(args[0], tableio.Options{Encoding: flags.Encoding})
			if err != nil {
				return err
			}

			client, err := app.Client()
			if err != nil {
				return err
			}
			res, err := client.Resolve(cmd.Context(), batch, conflict.Options{
				IdentityColumns: flags.Identity,
				ConflictColumns: flags.Conflict,
				IDColumn:        flags.IDColumn,
				Policy:          policy,
				FallbackPolicy:  fallback,
				NullsConflict:   flags.NullsConflict,
			})
			if err != nil {
				return err
			}

			if flags.Write == "" {
				return shared.Print(app, res.Table)
			}
			if err := tableio.WriteFile(flags.Write, res.Table); err != nil {
				return err
			}
			app.Logger().Info().Str("path", flags.Write).Int("rows", res.Table.Len()).Msg("Resolved batch written")
			return shared.Print(app, res.Report)
		},
	}

	cmd.Flags().StringSliceVar(&flags.Identity, "identity", nil, "identity columns (required)")
	cmd.Flags().StringSliceVar(&flags.Conflict, "conflict", nil, "conflict columns")
	cmd.Flags().StringVar(&flags.IDColumn, "id-column", constants.DefaultConflictIDColumn, "column receiving the assigned ID")
	cmd.Flags().StringVar(&flags.Policy, "policy", constants.PolicyDistinct, "policy for undecided groups: distinct, same, manual")
	cmd.Flags().StringVar(&flags.Fallback, "fallback", constants.PolicyDistinct, "policy used when manual has nobody to ask")
	cmd.Flags().BoolVar(&flags.NullsConflict, "nulls-conflict", false, "treat null as a value that can disagree")
	cmd.Flags().StringVar(&flags.Encoding, "encoding", "", "batch charset: utf-8, latin1, windows-1252, utf-16")
	cmd.Flags().StringVarP(&flags.Write, "write", "w", "", "write the resolved batch to this file")
	_ = cmd.MarkFlagRequired("identity")

	return cmd
}
