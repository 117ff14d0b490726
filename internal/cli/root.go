// Package cli holds the rdv command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Local bool // force the environment lock, overriding LOCAL_ONLY
}

// NewRootCommand creates the root command of the rdv CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "rdv",
		Short:         "rdv - appointment manager",
		Long:          "Appointment manager keeping a local copy of every record and reconciling it with Firestore.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.Local, "local", false, "never use the remote store")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewCleanupCommand(opts))

	return cmd
}
