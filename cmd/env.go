package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/provenance/cli"
	"github.com/grovetools/provenance/command"
	"github.com/grovetools/provenance/pkg/envdesc"
	"github.com/spf13/cobra"
)

type envOutput struct {
	Path    string `json:"path"`
	Hash    string `json:"hash"`
	EnvName string `json:"env_name"`
	Reused  bool   `json:"reused"`
}

func NewEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env [DIR]",
		Short: "Resolve the environment descriptor for a directory",
		Long: `Exports the active environment and stores it in DIR as
ENV_<env>_<YYYYMMDD>.yml, unless a descriptor with identical content is
already there, in which case that file is reused.

Examples:
  prov env out/
  prov env --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			builder := command.NewSafeBuilder().WithDefaultTimeout(cfg.Timeout())
			resolver := envdesc.NewResolverFromConfig(cfg.Environment, builder).
				WithLogger(cli.GetLogger(cmd))

			desc, err := resolver.Resolve(cmd.Context(), dir)
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(envOutput{
					Path:    desc.Path,
					Hash:    desc.Hash,
					EnvName: desc.EnvName,
					Reused:  desc.Reused,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			state := "new"
			if desc.Reused {
				state = "reused"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", desc.Path, state)
			return nil
		},
	}
}
