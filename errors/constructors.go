package errors

import (
	"fmt"
	"os/exec"
	"strings"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *ProvError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *ProvError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// CommandFailed creates a command execution failure error
func CommandFailed(cmd string, err error) *ProvError {
	provErr := Wrap(err, ErrCodeCommandFailed, fmt.Sprintf("command failed: %s", cmd)).
		WithDetail("command", cmd)

	// Extract exit code if available
	if exitErr, ok := err.(*exec.ExitError); ok {
		provErr = provErr.WithDetail("exitCode", exitErr.ExitCode())
	}

	return provErr
}

// CommandNotFound creates an error for an executable missing from PATH
func CommandNotFound(name string, err error) *ProvError {
	return Wrap(err, ErrCodeCommandNotFound, fmt.Sprintf("command not found: %s", name)).
		WithDetail("command", name)
}

// RevisionChanged reports that the code revision moved while an artifact was
// being produced.
func RevisionChanged(before, after string) *ProvError {
	return New(ErrCodeRevisionChanged,
		fmt.Sprintf("code revision changed during capture: %s -> %s", before, after)).
		WithDetail("start_revision", before).
		WithDetail("end_revision", after)
}

// ArtifactMissing creates an error for an artifact that cannot be read at
// the end of a session
func ArtifactMissing(path string, err error) *ProvError {
	return Wrap(err, ErrCodeArtifactMissing, fmt.Sprintf("artifact not readable: %s", path)).
		WithDetail("path", path)
}

// EnvNameUnset creates an error for a missing environment name variable
func EnvNameUnset(variable string) *ProvError {
	return New(ErrCodeEnvNameUnset,
		fmt.Sprintf("environment variable %s is not set; cannot name the environment descriptor", variable)).
		WithDetail("variable", variable)
}

// EnvExportFailed creates an environment export failure error
func EnvExportFailed(argv []string, err error) *ProvError {
	cmd := strings.Join(argv, " ")
	return Wrap(err, ErrCodeEnvExportFailed, fmt.Sprintf("environment export failed: %s", cmd)).
		WithDetail("command", cmd)
}

// UnsupportedType creates an encoder error naming the offending Go type
func UnsupportedType(key string, typeName string) *ProvError {
	return New(ErrCodeUnsupportedType, fmt.Sprintf("no custom encoding for %s implemented (key %q)", typeName, key)).
		WithDetail("key", key).
		WithDetail("type", typeName)
}

// HashMismatch creates an error for an artifact whose bytes no longer match
// its recorded digest
func HashMismatch(path, recorded, actual string) *ProvError {
	return New(ErrCodeHashMismatch, fmt.Sprintf("artifact %s changed since it was recorded", path)).
		WithDetail("path", path).
		WithDetail("recorded", recorded).
		WithDetail("actual", actual)
}

// WorkFailed wraps the failure of the command run inside a capture session
func WorkFailed(cmd string, err error) *ProvError {
	provErr := Wrap(err, ErrCodeWorkFailed, fmt.Sprintf("work failed, no metadata recorded: %s", cmd)).
		WithDetail("command", cmd)
	if exitErr, ok := err.(*exec.ExitError); ok {
		provErr = provErr.WithDetail("exitCode", exitErr.ExitCode())
	}
	return provErr
}
