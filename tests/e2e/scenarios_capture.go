package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grovetools/tend/pkg/assert"
	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// produce is the work every capture scenario wraps.
var produce = []string{"--", "sh", "-c", "mkdir -p out && printf 'a,b\\n1,2\\n' > out/results.csv"}

func runCapture(ctx *harness.Context, env string, extra ...string) (*provResult, error) {
	args := append([]string{"run", "--artifact", "out/results.csv"}, extra...)
	return runProv(ctx, env, append(args, produce...)...)
}

func listNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// CaptureFirstRunScenario records an artifact in an empty directory.
func CaptureFirstRunScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "prov-capture-first-run",
		Description: "A first capture writes the sidecar and a new environment descriptor.",
		Tags:        []string{"prov", "capture"},
		Steps: []harness.Step{
			harness.NewStep("Setup project", setupProject),
			harness.NewStep("Run capture", func(ctx *harness.Context) error {
				result, err := runCapture(ctx, "e2e")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, result.ExitCode, "prov run should succeed"); err != nil {
					return err
				}
				return assert.Contains(result.Stdout, "out/results.meta.json", "sidecar path should be printed")
			}),
			harness.NewStep("Verify sidecar and descriptor", func(ctx *harness.Context) error {
				outDir := filepath.Join(ctx.GetString("project_dir"), "out")
				sidecar, err := fs.ReadString(filepath.Join(outDir, "results.meta.json"))
				if err != nil {
					return err
				}
				for _, key := range []string{"start_time", "end_time", "duration", "file_hash", "working_directory", "call_stack", "environment_descriptor_path"} {
					if err := assert.Contains(sidecar, `"`+key+`"`, "record should contain "+key); err != nil {
						return err
					}
				}
				if err := assert.Contains(sidecar, "ENV_e2e_", "record should reference the descriptor"); err != nil {
					return err
				}

				names, err := listNames(outDir)
				if err != nil {
					return err
				}
				descriptors := 0
				for _, name := range names {
					if strings.HasPrefix(name, "ENV_e2e_") && strings.HasSuffix(name, ".yml") {
						descriptors++
					}
				}
				return assert.Equal(1, descriptors, "exactly one descriptor should exist")
			}),
			harness.NewStep("Verify record", func(ctx *harness.Context) error {
				result, err := runProv(ctx, "e2e", "verify", "out/results.meta.json")
				if err != nil {
					return err
				}
				return assert.Equal(0, result.ExitCode, "prov verify should accept the fresh record")
			}),
		},
	}
}

// CaptureReuseScenario runs the same capture twice with an unchanged
// environment.
func CaptureReuseScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "prov-capture-reuse",
		Description: "A second capture numbers the sidecar and reuses the identical descriptor.",
		Tags:        []string{"prov", "capture"},
		Steps: []harness.Step{
			harness.NewStep("Setup project", setupProject),
			harness.NewStep("Capture twice", func(ctx *harness.Context) error {
				for _, want := range []string{"out/results.meta.json", "out/results.meta_1.json"} {
					result, err := runCapture(ctx, "e2e")
					if err != nil {
						return err
					}
					if err := assert.Equal(0, result.ExitCode, "prov run should succeed"); err != nil {
						return err
					}
					if err := assert.Contains(result.Stdout, want, "sidecar path"); err != nil {
						return err
					}
				}
				return nil
			}),
			harness.NewStep("Verify single descriptor", func(ctx *harness.Context) error {
				matches, err := filepath.Glob(filepath.Join(ctx.GetString("project_dir"), "out", "ENV_e2e_*.yml"))
				if err != nil {
					return err
				}
				return assert.Equal(1, len(matches), "identical environment must not be written twice")
			}),
		},
	}
}

// CaptureChangedEnvironmentScenario changes the environment between two
// captures on the same day.
func CaptureChangedEnvironmentScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "prov-capture-changed-environment",
		Description: "A changed environment export gets a numbered descriptor next to the old one.",
		Tags:        []string{"prov", "capture"},
		Steps: []harness.Step{
			harness.NewStep("Setup project", setupProject),
			harness.NewStep("Capture with first environment", func(ctx *harness.Context) error {
				result, err := runCapture(ctx, "e2e")
				if err != nil {
					return err
				}
				return assert.Equal(0, result.ExitCode, "prov run should succeed")
			}),
			harness.NewStep("Change environment and capture again", func(ctx *harness.Context) error {
				changed := strings.Replace(projectConfig, "python=3.11", "python=3.12", 1)
				if err := fs.WriteString(filepath.Join(ctx.GetString("project_dir"), "prov.yml"), changed); err != nil {
					return err
				}
				result, err := runCapture(ctx, "e2e")
				if err != nil {
					return err
				}
				return assert.Equal(0, result.ExitCode, "prov run should succeed")
			}),
			harness.NewStep("Verify two descriptors", func(ctx *harness.Context) error {
				outDir := filepath.Join(ctx.GetString("project_dir"), "out")
				matches, err := filepath.Glob(filepath.Join(outDir, "ENV_e2e_*.yml"))
				if err != nil {
					return err
				}
				if err := assert.Equal(2, len(matches), "a changed environment needs its own descriptor"); err != nil {
					return err
				}
				numbered, err := filepath.Glob(filepath.Join(outDir, "ENV_e2e_*_1.yml"))
				if err != nil {
					return err
				}
				return assert.Equal(1, len(numbered), "the second descriptor should carry the _1 suffix")
			}),
		},
	}
}

// CaptureFailureScenario covers the paths that must leave no sidecar.
func CaptureFailureScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "prov-capture-failures",
		Description: "Failed work, a missing artifact or an unset environment name write nothing.",
		Tags:        []string{"prov", "capture", "errors"},
		Steps: []harness.Step{
			harness.NewStep("Setup project", setupProject),
			harness.NewStep("Failing work", func(ctx *harness.Context) error {
				result, err := runProv(ctx, "e2e", "run", "--artifact", "out/results.csv", "--",
					"sh", "-c", "mkdir -p out && printf x > out/results.csv && exit 2")
				if err != nil {
					return err
				}
				if err := assert.Equal(1, result.ExitCode, "prov run should fail"); err != nil {
					return err
				}
				return assert.Contains(result.Stderr, "WORK_FAILED", "error code should be reported")
			}),
			harness.NewStep("Missing artifact", func(ctx *harness.Context) error {
				result, err := runProv(ctx, "e2e", "run", "--artifact", "out/never.csv", "--", "true")
				if err != nil {
					return err
				}
				if err := assert.Equal(1, result.ExitCode, "prov run should fail"); err != nil {
					return err
				}
				return assert.Contains(result.Stderr, "ARTIFACT_MISSING", "error code should be reported")
			}),
			harness.NewStep("Unset environment name", func(ctx *harness.Context) error {
				result, err := runCapture(ctx, "")
				if err != nil {
					return err
				}
				if err := assert.Equal(1, result.ExitCode, "prov run should fail"); err != nil {
					return err
				}
				return assert.Contains(result.Stderr, "CONDA_DEFAULT_ENV", "hint should name the variable")
			}),
			harness.NewStep("Verify nothing was recorded", func(ctx *harness.Context) error {
				names, err := listNames(filepath.Join(ctx.GetString("project_dir"), "out"))
				if err != nil {
					return err
				}
				for _, name := range names {
					if strings.Contains(name, ".meta") || strings.HasPrefix(name, "ENV_") {
						return fmt.Errorf("unexpected file %s after failed captures", name)
					}
				}
				return nil
			}),
		},
	}
}

// VerifyTamperedArtifactScenario edits an artifact after it was recorded.
func VerifyTamperedArtifactScenario() *harness.Scenario {
	return &harness.Scenario{
		Name:        "prov-verify-tampered",
		Description: "prov verify reports HASH_MISMATCH once the artifact changes.",
		Tags:        []string{"prov", "verify"},
		Steps: []harness.Step{
			harness.NewStep("Setup project", setupProject),
			harness.NewStep("Capture and tamper", func(ctx *harness.Context) error {
				result, err := runCapture(ctx, "e2e")
				if err != nil {
					return err
				}
				if err := assert.Equal(0, result.ExitCode, "prov run should succeed"); err != nil {
					return err
				}
				return fs.WriteString(filepath.Join(ctx.GetString("project_dir"), "out", "results.csv"), "changed\n")
			}),
			harness.NewStep("Verify detects change", func(ctx *harness.Context) error {
				result, err := runProv(ctx, "e2e", "verify", "out/results.meta.json")
				if err != nil {
					return err
				}
				if err := assert.Equal(1, result.ExitCode, "prov verify should fail"); err != nil {
					return err
				}
				return assert.Contains(result.Stderr, "HASH_MISMATCH", "error code should be reported")
			}),
		},
	}
}
