package main

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/grovetools/tend/pkg/fs"
	"github.com/grovetools/tend/pkg/harness"
)

// projectConfig exports a fixed environment so scenarios do not need conda.
const projectConfig = `version: "1.0"
environment:
  export_command: ["sh", "-c", "printf 'name: e2e\ndependencies:\n  - python=3.11\n'"]
`

// findProvBinary finds the prov binary under test.
// It relies on the Makefile setting the PATH to include the local ./bin directory.
func findProvBinary() (string, error) {
	path, err := exec.LookPath("prov")
	if err != nil {
		return "", fmt.Errorf("could not find 'prov' binary in PATH. Ensure 'make test-e2e' is used")
	}
	return path, nil
}

// setupProject creates a project directory with a prov.yml and stores its
// path under "project_dir".
func setupProject(ctx *harness.Context) error {
	projectDir := ctx.NewDir("project")
	if err := fs.WriteString(filepath.Join(projectDir, "prov.yml"), projectConfig); err != nil {
		return err
	}
	ctx.Set("project_dir", projectDir)
	return nil
}

// provResult is the outcome of a prov invocation.
type provResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// runProv runs prov inside the project directory with CONDA_DEFAULT_ENV set
// to env (unset when env is empty).
func runProv(ctx *harness.Context, env string, args ...string) (*provResult, error) {
	provBinary, err := findProvBinary()
	if err != nil {
		return nil, err
	}

	line := "unset CONDA_DEFAULT_ENV; exec " + shellQuote(provBinary)
	if env != "" {
		line = "CONDA_DEFAULT_ENV=" + shellQuote(env) + " exec " + shellQuote(provBinary)
	}
	for _, arg := range args {
		line += " " + shellQuote(arg)
	}

	cmd := ctx.Command("sh", "-c", line).Dir(ctx.GetString("project_dir"))
	result := cmd.Run()
	ctx.ShowCommandOutput(cmd.String(), result.Stdout, result.Stderr)
	return &provResult{Stdout: result.Stdout, Stderr: result.Stderr, ExitCode: result.ExitCode}, nil
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
