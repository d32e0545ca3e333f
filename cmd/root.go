package cmd

import (
	"github.com/grovetools/provenance/cli"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the prov command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := cli.NewStandardCommand(
		"prov",
		"Record how and when an artifact was produced",
	)
	rootCmd.Long = `prov wraps the production of an artifact and writes a metadata sidecar
next to it: start and end time, duration, SHA-1 of the artifact, working
directory, call stack and a deduplicated environment descriptor.

Examples:
  prov run --artifact results.csv -- python analyse.py
  prov verify results.meta.json`

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewHashCmd())
	rootCmd.AddCommand(NewUniqueCmd())
	rootCmd.AddCommand(NewRevisionCmd())
	rootCmd.AddCommand(NewEnvCmd())
	rootCmd.AddCommand(NewVerifyCmd())
	rootCmd.AddCommand(NewSchemaCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("prov"))

	cli.ApplyStyledHelpRecursive(rootCmd)
	return rootCmd
}
