package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"focal/internal/version"
)

// newRootCmd creates the root focal command with all subcommands attached.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "focal",
		Short:         "Track the active git context for a multi-project session",
		Long:          "focal keeps one live context per open project's git working directory\nand reconciles which of them is active as projects open, close, and change.",
		Version:       fmt.Sprintf("focal %s", version.String()),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newWatchCmd(),
		newStatusCmd(),
	)

	return cmd
}
