package cmd

import (
	"fmt"

	"github.com/grovetools/provenance/util/pathutil"
	"github.com/spf13/cobra"
)

func NewUniqueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unique PATH",
		Short: "Print PATH, or PATH with the first free _N suffix before its extension",
		Example: `prov unique results.csv
# results_1.csv when results.csv exists`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), pathutil.Unique(args[0]))
			return nil
		},
	}
}
