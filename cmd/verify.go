package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/grovetools/provenance/cli"
	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/logging"
	"github.com/grovetools/provenance/pkg/filehash"
	"github.com/grovetools/provenance/pkg/record"
	"github.com/spf13/cobra"
)

type verifyOutput struct {
	Sidecar  string `json:"sidecar"`
	Artifact string `json:"artifact"`
	FileHash string `json:"file_hash"`
	OK       bool   `json:"ok"`
}

func NewVerifyCmd() *cobra.Command {
	var artifact string

	cmd := &cobra.Command{
		Use:   "verify SIDECAR",
		Short: "Check a sidecar against the record schema and re-hash its artifact",
		Long: `Validates SIDECAR against the record schema, then hashes the artifact
it describes and compares the digest with file_hash. A relative
artifact_path is resolved against the recorded working directory.

Examples:
  prov verify results.meta.json
  prov verify results.meta.json --artifact archive/results.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sidecar := args[0]
			rec, err := record.Read(sidecar)
			if err != nil {
				return err
			}

			target, err := artifactFor(rec, artifact)
			if err != nil {
				return err
			}

			actual, err := filehash.File(target)
			if err != nil {
				return errors.ArtifactMissing(target, err)
			}
			if actual != rec.FileHash {
				return errors.HashMismatch(target, rec.FileHash, actual)
			}

			cli.GetLogger(cmd).WithField("artifact", target).Debug("Artifact matches its record")

			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(verifyOutput{
					Sidecar:  sidecar,
					Artifact: target,
					FileHash: actual,
					OK:       true,
				}, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			logging.NewPrettyLogger().WithWriter(cmd.OutOrStdout()).Success(fmt.Sprintf("%s matches %s", target, sidecar))
			return nil
		},
	}

	cmd.Flags().StringVar(&artifact, "artifact", "", "Artifact to check instead of the recorded artifact_path")
	return cmd
}

// artifactFor picks the file a record should be checked against.
func artifactFor(rec *record.Record, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if rec.ArtifactPath == "" {
		return "", errors.New(errors.ErrCodeInvalidInput, "record has no artifact_path; pass --artifact")
	}
	if filepath.IsAbs(rec.ArtifactPath) || rec.WorkingDirectory == "" {
		return rec.ArtifactPath, nil
	}
	return filepath.Join(rec.WorkingDirectory, rec.ArtifactPath), nil
}
