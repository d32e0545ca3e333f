package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultTimeout is zero: commands block until they exit unless a
	// timeout is configured explicitly.
	DefaultTimeout time.Duration = 0

	// MaxTimeout is the maximum allowed timeout
	MaxTimeout = 10 * time.Minute
)

var (
	envVarNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	envNameRegex    = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._+-]*$`)
	gitRefRegex     = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
)

// SafeBuilder provides secure command execution with validation
type SafeBuilder struct {
	defaultTimeout time.Duration
	validators     map[string]func(string) error
	executor       Executor
}

// NewSafeBuilder creates a new SafeBuilder instance with a RealExecutor
func NewSafeBuilder() *SafeBuilder {
	return NewSafeBuilderWithExecutor(&RealExecutor{})
}

// NewSafeBuilderWithExecutor creates a new SafeBuilder with a custom Executor
func NewSafeBuilderWithExecutor(exec Executor) *SafeBuilder {
	if exec == nil {
		exec = &RealExecutor{}
	}
	return &SafeBuilder{
		defaultTimeout: DefaultTimeout,
		validators:     makeDefaultValidators(),
		executor:       exec,
	}
}

// WithDefaultTimeout sets the timeout applied to every command built
// afterwards. Zero disables it.
func (sb *SafeBuilder) WithDefaultTimeout(timeout time.Duration) *SafeBuilder {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}
	if timeout < 0 {
		timeout = 0
	}
	sb.defaultTimeout = timeout
	return sb
}

// makeDefaultValidators returns the default set of validators
func makeDefaultValidators() map[string]func(string) error {
	return map[string]func(string) error{
		"envVarName": validateEnvVarName,
		"envName":    validateEnvName,
		"fileName":   validateFileName,
		"gitRef":     validateGitRef,
	}
}

// validateEnvVarName ensures a process environment variable name is well formed
func validateEnvVarName(name string) error {
	if name == "" {
		return fmt.Errorf("environment variable name cannot be empty")
	}
	if !envVarNameRegex.MatchString(name) {
		return fmt.Errorf("invalid environment variable name: %s", name)
	}
	return nil
}

// validateEnvName ensures an environment name can be embedded in a file name
func validateEnvName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name cannot be empty")
	}
	if !envNameRegex.MatchString(name) {
		return fmt.Errorf("invalid environment name: %s (letters, digits, '.', '_', '+', '-' only)", name)
	}
	if strings.Contains(name, "..") {
		return fmt.Errorf("environment name cannot contain '..'")
	}
	return nil
}

// validateFileName ensures file paths are safe
func validateFileName(path string) error {
	if path == "" {
		return fmt.Errorf("file path cannot be empty")
	}

	// Prevent directory traversal
	if strings.Contains(path, "..") {
		return fmt.Errorf("file path cannot contain '..'")
	}

	// Prevent command injection via shell metacharacters
	if strings.ContainsAny(path, ";|&$`") {
		return fmt.Errorf("file path contains invalid characters")
	}

	return nil
}

// validateGitRef ensures git references are safe
func validateGitRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("git ref cannot be empty")
	}

	if !gitRefRegex.MatchString(ref) {
		return fmt.Errorf("invalid git ref: %s", ref)
	}

	return nil
}

// Command represents a safe command configuration
type Command struct {
	base     context.Context
	ctx      context.Context
	cancel   context.CancelFunc
	name     string
	args     []string
	timeout  time.Duration
	executor Executor
	env      []string
	envSet   bool
	dir      string
}

// Build creates a new command with validation
func (sb *SafeBuilder) Build(ctx context.Context, name string, args ...string) (*Command, error) {
	// Validate command name
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	cmd := &Command{
		base:     ctx,
		ctx:      ctx,
		cancel:   func() {},
		name:     name,
		args:     args,
		executor: sb.executor,
	}
	if sb.defaultTimeout > 0 {
		cmd = cmd.WithTimeout(sb.defaultTimeout)
	}
	return cmd, nil
}

// WithTimeout sets a custom timeout for the command, derived from the
// context the command was built with.
func (c *Command) WithTimeout(timeout time.Duration) *Command {
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	c.cancel()
	ctx, cancel := context.WithTimeout(c.base, timeout)
	c.ctx = ctx
	c.cancel = cancel
	c.timeout = timeout
	return c
}

// WithEnv replaces the inherited process environment with exactly env
// ("KEY=value" entries). An empty, non-nil slice runs the command with no
// environment at all.
func (c *Command) WithEnv(env []string) *Command {
	c.env = append([]string{}, env...)
	c.envSet = true
	return c
}

// WithDir sets the working directory of the command.
func (c *Command) WithDir(dir string) *Command {
	c.dir = dir
	return c
}

// String renders the command line for logs and error messages.
func (c *Command) String() string {
	return strings.TrimSpace(c.name + " " + strings.Join(c.args, " "))
}

// Validate validates specific arguments
func (sb *SafeBuilder) Validate(argType string, value string) error {
	validator, exists := sb.validators[argType]
	if !exists {
		return fmt.Errorf("no validator for argument type: %s", argType)
	}

	return validator(value)
}

// Exec creates and returns an exec.Cmd. Callers that use Exec directly
// should call Release once the process has exited.
func (c *Command) Exec() *exec.Cmd {
	cmd := c.executor.CommandContext(c.ctx, c.name, c.args...) //nolint:gosec // SafeBuilder provides validation
	if c.envSet {
		cmd.Env = c.env
	}
	if c.dir != "" {
		cmd.Dir = c.dir
	}
	return cmd
}

// Release frees the timeout context, if any.
func (c *Command) Release() {
	c.cancel()
}

// Output runs the command and returns its standard output. Stderr is
// captured and included in the returned error on failure.
func (c *Command) Output() ([]byte, error) {
	defer c.Release()

	var stdout, stderr bytes.Buffer
	cmd := c.Exec()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, c.wrapErr(err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// RunTo runs the command with stdout streamed verbatim into w.
func (c *Command) RunTo(w io.Writer) error {
	defer c.Release()

	var stderr bytes.Buffer
	cmd := c.Exec()
	cmd.Stdout = w
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return c.wrapErr(err, stderr.String())
	}
	return nil
}

func (c *Command) wrapErr(err error, stderr string) error {
	if stderr = strings.TrimSpace(stderr); stderr != "" {
		return &RunError{Command: c.String(), Err: err, Stderr: stderr}
	}
	return &RunError{Command: c.String(), Err: err}
}

// RunError describes a command that could not be started or exited
// unsuccessfully.
type RunError struct {
	Command string
	Err     error
	Stderr  string
}

func (e *RunError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v (stderr: %s)", e.Command, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
