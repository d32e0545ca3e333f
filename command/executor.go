package command

import (
	"context"
	"os/exec"
)

// Executor creates exec.Cmd instances. This abstraction allows for dependency
// injection, enabling test-specific command creation logic (e.g., pointing a
// tool name at a stub script) without modifying production code.
type Executor interface {
	// Command creates a new exec.Cmd instance for the given command and arguments.
	Command(name string, args ...string) *exec.Cmd
	// CommandContext creates a new context-aware exec.Cmd instance.
	CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd
}

// RealExecutor is the production implementation of the Executor interface,
// which uses the standard os/exec package to create commands.
type RealExecutor struct{}

// Command creates a standard exec.Cmd.
func (e *RealExecutor) Command(name string, args ...string) *exec.Cmd {
	return exec.Command(name, args...)
}

// CommandContext creates a standard context-aware exec.Cmd.
func (e *RealExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// ScriptExecutor replaces named programs with shell snippets run by /bin/sh.
// Programs without an entry run unchanged. The original arguments are
// passed to the snippet as "$@".
type ScriptExecutor struct {
	Scripts map[string]string
}

// Command creates an exec.Cmd, substituting a script when one is registered.
func (e *ScriptExecutor) Command(name string, args ...string) *exec.Cmd {
	return e.CommandContext(context.Background(), name, args...)
}

// CommandContext creates a context-aware exec.Cmd, substituting a script when
// one is registered.
func (e *ScriptExecutor) CommandContext(ctx context.Context, name string, args ...string) *exec.Cmd {
	script, ok := e.Scripts[name]
	if !ok {
		return exec.CommandContext(ctx, name, args...)
	}
	shArgs := append([]string{"-c", script, name}, args...)
	return exec.CommandContext(ctx, "/bin/sh", shArgs...)
}
