package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/grovetools/provenance/cli"
	"github.com/grovetools/provenance/command"
	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/logging"
	"github.com/grovetools/provenance/pkg/provenance"
	"github.com/spf13/cobra"
)

func NewRunCmd() *cobra.Command {
	var (
		artifact string
		label    string
		sets     []string
	)

	cmd := &cobra.Command{
		Use:   "run --artifact PATH [flags] -- COMMAND [ARGS...]",
		Short: "Run a command and record the provenance of the artifact it writes",
		Long: `Runs COMMAND as the work of a provenance session. When it exits
successfully the artifact is hashed, the environment descriptor is
resolved and the sidecar is written. A failing command, a missing
artifact or a code revision change leaves no sidecar behind.

Examples:
  prov run --artifact out/results.csv -- python analyse.py
  prov run --artifact model.bin --label nightly --set seed=42 -- make model`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if artifact == "" {
				return errors.New(errors.ErrCodeInvalidInput, "--artifact is required")
			}
			labels, err := parseLabels(sets)
			if err != nil {
				return err
			}

			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := cli.GetLogger(cmd)

			work := func(ctx context.Context) error {
				return runWork(ctx, cmd, args)
			}

			result, err := provenance.Capture(cmd.Context(), artifact, work,
				provenance.FromConfig(cfg),
				provenance.WithLogger(logger),
				provenance.WithLabel(label),
				provenance.WithLabels(labels),
			)
			if err != nil {
				return err
			}

			if cli.GetOptions(cmd).JSONOutput {
				data, err := result.Record.Marshal()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			pretty := logging.NewPrettyLogger().WithWriter(cmd.ErrOrStderr())
			pretty.Success("Recorded provenance for " + artifact)
			pretty.Field("duration", result.Record.Duration.String())
			pretty.Field("sha1", result.Record.FileHash)
			if result.Descriptor.Reused {
				pretty.Path("environment (reused)", result.Descriptor.Path)
			} else {
				pretty.Path("environment", result.Descriptor.Path)
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.SidecarPath)
			return nil
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().StringVarP(&artifact, "artifact", "a", "", "Path of the artifact the command produces")
	cmd.Flags().StringVarP(&label, "label", "l", "", "Free-form label stored in the record")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Extra key=value label, repeatable")

	return cmd
}

// runWork runs the wrapped command with the caller's stdio.
func runWork(ctx context.Context, cmd *cobra.Command, args []string) error {
	c, err := command.NewSafeBuilder().Build(ctx, args[0], args[1:]...)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "building work command")
	}
	defer c.Release()

	proc := c.Exec()
	proc.Stdin = cmd.InOrStdin()
	proc.Stdout = cmd.OutOrStdout()
	proc.Stderr = cmd.ErrOrStderr()
	if err := proc.Run(); err != nil {
		if stderrors.Is(err, exec.ErrNotFound) {
			return errors.WorkFailed(c.String(), errors.CommandNotFound(args[0], err))
		}
		return errors.WorkFailed(c.String(), err)
	}
	return nil
}

// parseLabels turns repeated key=value flags into a map. Later keys win.
func parseLabels(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	labels := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, fmt.Sprintf("invalid --set %q, expected key=value", pair)).
				WithDetail("value", pair)
		}
		labels[key] = value
	}
	return labels, nil
}
