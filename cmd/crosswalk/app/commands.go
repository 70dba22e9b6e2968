package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/crosswalk/cmd/crosswalk/cmd/consolidate"
	"github.com/agentstation/crosswalk/cmd/crosswalk/cmd/link"
	"github.com/agentstation/crosswalk/cmd/crosswalk/cmd/profile"
	"github.com/agentstation/crosswalk/cmd/crosswalk/cmd/resolve"
	"github.com/agentstation/crosswalk/cmd/crosswalk/cmd/seed"
)

// registerCommands registers all subcommands with the root command.
func (a *App) registerCommands(rootCmd *cobra.Command) {
	// Core commands
	rootCmd.AddCommand(link.NewCommand(a))
	rootCmd.AddCommand(resolve.NewCommand(a))
	rootCmd.AddCommand(seed.NewCommand(a))
	rootCmd.AddCommand(profile.NewCommand(a))

	// Management commands
	rootCmd.AddCommand(consolidate.NewCommand(a))

	// Utility commands
	rootCmd.AddCommand(a.newVersionCommand())
}

// newVersionCommand creates the version command.
func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("crosswalk %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
