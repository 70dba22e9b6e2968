// Package seed implements the seed command, which starts a canonical table
// from a first batch.
package seed

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/agentstation/crosswalk/cmd/application"
	"github.com/agentstation/crosswalk/cmd/crosswalk/cmd/shared"
	"github.com/agentstation/crosswalk/pkg/errors"
	"github.com/agentstation/crosswalk/pkg/tableio"
)

// NewCommand creates the seed command.
func NewCommand(app application.Application) *cobra.Command {
	var (
		idColumn string
		out      string
		encoding string
		force    bool
	)

	cmd := &cobra.Command{
		Use:     "seed BATCH",
		GroupID: "core",
		Short:   "Start a canonical table from a batch",
		Args:    cobra.ExactArgs(1),
		Long: `Seed mints one Entity ID per distinct value of the batch ID column, numbered
from 1 in order of first appearance, and writes the canonical table.

The batch must already carry its ID column, for example from resolve.`,
		Example: `  crosswalk seed roster.resolved.csv --id-column conflict_id --out canonical.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(out); err == nil {
					return errors.NewValidationError("out", out, "canonical table exists, use --force to replace it")
				}
			}
			batch, err := tableio.ReadFile(args[0], tableio.Options{Encoding: encoding})
			if err != nil {
				return err
			}
			client, err := app.Client()
			if err != nil {
				return err
			}
			s, err := client.Seed(cmd.Context(), batch, idColumn)
			if err != nil {
				return err
			}
			if err := tableio.WriteFile(out, s.Canonical()); err != nil {
				return err
			}
			return shared.Print(app, struct {
				Canonical string `json:"canonical"`
				Rows      int    `json:"rows"`
				Entities  int64  `json:"entities"`
			}{out, s.Canonical().Len(), s.Canonical().MaxID(s.UIDColumn())})
		},
	}

	cmd.Flags().StringVar(&idColumn, "id-column", "", "batch ID column (required)")
	cmd.Flags().StringVarP(&out, "out", "w", "", "canonical table to write (required)")
	cmd.Flags().StringVar(&encoding, "encoding", "", "batch charset: utf-8, latin1, windows-1252, utf-16")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing canonical table")
	_ = cmd.MarkFlagRequired("id-column")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
