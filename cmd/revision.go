package cmd

import (
	"fmt"

	"github.com/grovetools/provenance/cli"
	"github.com/grovetools/provenance/command"
	"github.com/grovetools/provenance/git"
	"github.com/spf13/cobra"
)

func NewRevisionCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "revision",
		Short: "Print the current code revision, or Unknown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.Revision.Dir
			}

			builder := command.NewSafeBuilder().WithDefaultTimeout(cfg.Timeout())
			lookup := git.NewRevisionLookupWithBuilder(dir, builder).WithLogger(cli.GetLogger(cmd))
			fmt.Fprintln(cmd.OutOrStdout(), lookup.Revision(cmd.Context()))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directory to read the revision from (default: revision.dir or the current directory)")
	return cmd
}
