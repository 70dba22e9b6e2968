// Package profile implements the profile command, which collapses the
// canonical table to one row per entity.
package profile

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/crosswalk/cmd/application"
	"github.com/agentstation/crosswalk/cmd/crosswalk/cmd/shared"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/plan"
	"github.com/agentstation/crosswalk/pkg/tableio"
)

// NewCommand creates the profile command.
func NewCommand(app application.Application) *cobra.Command {
	var write string

	cmd := &cobra.Command{
		Use:     "profile PLAN",
		GroupID: "core",
		Short:   "Aggregate the canonical table by entity",
		Args:    cobra.ExactArgs(1),
		Long: `Profile reads the canonical table named by a plan and applies the plan's
profile section, producing one row per Entity ID.

The result is written to --write, else to the plan's output.profile, else
printed.`,
		Example: `  crosswalk profile plans/2019-roster.yaml
  crosswalk profile plans/2019-roster.yaml -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}
			specs, err := p.ProfileSpecs()
			if err != nil {
				return err
			}
			if len(specs) == 0 {
				return errors.NewValidationError("profile", nil, "plan has no profile section")
			}
			canonical, err := tableio.ReadFile(p.Canonical, tableio.Options{})
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}
			profile, err := client.Profile(cmd.Context(), canonical, specs...)
			if err != nil {
				return err
			}

			path := write
			if path == "" {
				path = p.Output.Profile
			}
			if path == "" {
				return shared.Print(app, profile)
			}
			if err := tableio.WriteFile(path, profile); err != nil {
				return err
			}
			app.Logger().Info().Str("path", path).Int("entities", profile.Len()).Msg("Profile written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&write, "write", "w", "", "write the profile to this file")
	return cmd
}
