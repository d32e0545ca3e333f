package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/grovetools/provenance/cli"
	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/pkg/filehash"
	"github.com/spf13/cobra"
)

func NewHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash FILE...",
		Short: "Print the SHA-1 digest of each file",
		Example: `prov hash results.csv
prov hash --json a.csv b.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digests := make(map[string]string, len(args))
			for _, path := range args {
				digest, err := filehash.File(path)
				if err != nil {
					return errors.Wrap(err, errors.ErrCodeArtifactMissing, fmt.Sprintf("hashing %s", path)).
						WithDetail("path", path)
				}
				digests[path] = digest
			}

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(digests, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			for _, path := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", digests[path], path)
			}
			return nil
		},
	}
}
