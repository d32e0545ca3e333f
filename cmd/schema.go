package cmd

import (
	"fmt"

	"github.com/grovetools/provenance/config"
	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/pkg/record"
	"github.com/spf13/cobra"
)

func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [record|config]",
		Short:     "Print the JSON Schema of a sidecar record or of prov.yml",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"record", "config"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := "record"
			if len(args) == 1 {
				kind = args[0]
			}

			var (
				data []byte
				err  error
			)
			switch kind {
			case "record":
				data, err = record.Schema()
			case "config":
				data, err = config.GenerateSchema()
			default:
				return errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("unknown schema %q (record or config)", kind))
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
