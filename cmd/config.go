package cmd

import (
	"fmt"

	"github.com/grovetools/provenance/cli"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Display the merged configuration for the current directory",
		Long: `Shows the configuration prov uses here, built by merging:
1. Built-in defaults
2. Global config ($XDG_CONFIG_HOME/prov/prov.yml and *.toml fragments)
3. Project config (prov.yml, searched upward and at the git root)
4. Override files (prov.override.yml)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sources := cfg.Sources()
			if len(sources) == 0 {
				fmt.Fprintln(out, "# Source: defaults")
			}
			for _, source := range sources {
				fmt.Fprintf(out, "# Source: %s\n", source)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}
			fmt.Fprint(out, string(data))
			return nil
		},
	}
}
