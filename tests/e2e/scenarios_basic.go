package main

import (
	"path/filepath"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// VersionScenario tests the 'version' command.
func VersionScenario() *harness.Scenario {
	return &harness.Scenario{
		Name: "prov-basic-version",
		Steps: []harness.Step{
			harness.NewStep("Run 'prov version'", func(ctx *harness.Context) error {
				provBinary, err := findProvBinary()
				if err != nil {
					return err
				}

				cmd := ctx.Command(provBinary, "version")
				result := cmd.Run()
				ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)

				if err := assert.Equal(0, result.ExitCode, "prov version should exit successfully"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "Version:", "Output should contain Version"); err != nil {
					return err
				}
				return assert.Contains(result.Stdout, "Commit:", "Output should contain Commit")
			}),
		},
	}
}

// ConfigOverrideScenario checks that prov.override.yml wins over prov.yml.
func ConfigOverrideScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "prov-config-override",
		Description: "The merged configuration lists both files and applies the override.",
		Tags:        []string{"prov", "config"},
		Steps: []harness.Step{
			harness.NewStep("Setup project", setupProject),
			harness.NewStep("Add override", func(ctx *harness.Context) error {
				return fs.WriteString(filepath.Join(ctx.GetString("project_dir"), "prov.override.yml"),
					"sidecar:\n  suffix: .prov.json\n")
			}),
			harness.NewStep("Inspect merged config", func(ctx *harness.Context) error {
				result, err := runProv(ctx, "e2e", "config")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, result.ExitCode, "prov config should succeed"); err != nil {
					return err
				}
				if err := assert.Contains(result.Stdout, "prov.override.yml", "override should be listed as a source"); err != nil {
					return err
				}
				return assert.Contains(result.Stdout, "suffix: .prov.json", "override value should win")
			}),
			harness.NewStep("Capture uses overridden suffix", func(ctx *harness.Context) error {
				result, err := runCapture(ctx, "e2e")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, result.ExitCode, "prov run should succeed"); err != nil {
					return err
				}
				return assert.Contains(result.Stdout, "out/results.prov.json", "sidecar should use the configured suffix")
			}),
		},
	}
}

// ConfigInvalidScenario checks that a bad prov.yml is rejected loudly.
func ConfigInvalidScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "prov-config-invalid",
		Description: "A prov.yml that fails schema validation aborts every command.",
		Tags:        []string{"prov", "config", "errors"},
		Steps: []harness.Step{
			harness.NewStep("Write invalid config", func(ctx *harness.Context) error {
				if err := setupProject(ctx); err != nil {
					return err
				}
				return fs.WriteString(filepath.Join(ctx.GetString("project_dir"), "prov.yml"),
					"environment:\n  export_command: []\n")
			}),
			harness.NewStep("Run prov config", func(ctx *harness.Context) error {
				result, err := runProv(ctx, "e2e", "config")
				if err != nil {
					return err
				}
				if err := assert.Equal(1, result.ExitCode, "prov config should fail"); err != nil {
					return err
				}
				return assert.Contains(result.Stderr, "CONFIG_", "a configuration error code should be reported")
			}),
		},
	}
}
