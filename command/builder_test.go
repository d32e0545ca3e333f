package command

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEnvVarName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"conda variable", "CONDA_DEFAULT_ENV", false},
		{"lowercase", "my_env", false},
		{"leading underscore", "_ENV", false},
		{"empty", "", true},
		{"leading digit", "1ENV", true},
		{"dash", "MY-ENV", true},
		{"assignment", "ENV=1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEnvVarName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateEnvVarName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEnvName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "base", false},
		{"with version", "py3.11", false},
		{"with dash", "ml-gpu", false},
		{"empty", "", true},
		{"path separator", "envs/ml", true},
		{"traversal", "a..b", true},
		{"leading dot", ".hidden", true},
		{"space", "my env", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEnvName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateEnvName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateFileName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid path", "/path/to/file.txt", false},
		{"relative path", "relative/path.txt", false},
		{"directory traversal", "../../etc/passwd", true},
		{"command injection semicolon", "file.txt; rm -rf /", true},
		{"command injection pipe", "file.txt | cat", true},
		{"command injection dollar", "$(whoami)", true},
		{"empty path", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFileName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidateGitRef(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"HEAD", "HEAD", false},
		{"valid with slash", "feature/add-button", false},
		{"valid tag", "v1.0.0", false},
		{"empty ref", "", true},
		{"command injection", "main; rm -rf /", true},
		{"spaces", "my branch", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateGitRef(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateGitRef(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSafeBuilder_Build(t *testing.T) {
	sb := NewSafeBuilder()
	ctx := context.Background()

	t.Run("valid command", func(t *testing.T) {
		cmd, err := sb.Build(ctx, "echo", "hello")
		require.NoError(t, err)
		assert.Equal(t, "echo", cmd.name)
		assert.Equal(t, []string{"hello"}, cmd.args)
		assert.Equal(t, time.Duration(0), cmd.timeout, "no timeout by default")
		assert.Equal(t, "echo hello", cmd.String())
	})

	t.Run("empty command name", func(t *testing.T) {
		_, err := sb.Build(ctx, "")
		assert.Error(t, err)
	})

	t.Run("default timeout applies", func(t *testing.T) {
		timed := NewSafeBuilder().WithDefaultTimeout(time.Second)
		cmd, err := timed.Build(ctx, "true")
		require.NoError(t, err)
		defer cmd.Release()
		_, hasDeadline := cmd.ctx.Deadline()
		assert.True(t, hasDeadline)
	})
}

func TestSafeBuilder_Validate(t *testing.T) {
	sb := NewSafeBuilder()

	assert.NoError(t, sb.Validate("envName", "base"))
	assert.Error(t, sb.Validate("envName", "a/b"))
	assert.Error(t, sb.Validate("unknownType", "value"))
}

func TestCommand_WithTimeout(t *testing.T) {
	sb := NewSafeBuilder()
	cmd, err := sb.Build(context.Background(), "sleep", "1")
	require.NoError(t, err)
	defer cmd.Release()

	cmd = cmd.WithTimeout(time.Second)
	assert.Equal(t, time.Second, cmd.timeout)

	cmd = cmd.WithTimeout(20 * time.Minute)
	assert.Equal(t, MaxTimeout, cmd.timeout, "timeout should be capped")
}

func TestCommandTimeout(t *testing.T) {
	sb := NewSafeBuilder()
	cmd, err := sb.Build(context.Background(), "sleep", "10")
	require.NoError(t, err)

	cmd = cmd.WithTimeout(100 * time.Millisecond)

	start := time.Now()
	_, err = cmd.Output()
	duration := time.Since(start)

	assert.Error(t, err)
	// Allow some margin for execution overhead
	assert.Less(t, duration, 2*time.Second)
}

func TestCommand_WithEnvReplacesEnvironment(t *testing.T) {
	t.Setenv("PROV_SHOULD_NOT_LEAK", "1")

	cmd, err := NewSafeBuilder().Build(context.Background(), "/usr/bin/env")
	require.NoError(t, err)
	out, err := cmd.WithEnv([]string{"LC_ALL=C", "ONLY=this"}).Output()
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.ElementsMatch(t, []string{"LC_ALL=C", "ONLY=this"}, lines)
}

func TestCommand_RunToStreamsStdout(t *testing.T) {
	cmd, err := NewSafeBuilder().Build(context.Background(), "/bin/sh", "-c", "printf 'a: 1\\nb: 2\\n'")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cmd.RunTo(&buf))
	assert.Equal(t, "a: 1\nb: 2\n", buf.String())
}

func TestCommand_OutputIncludesStderr(t *testing.T) {
	cmd, err := NewSafeBuilder().Build(context.Background(), "/bin/sh", "-c", "echo broken >&2; exit 3")
	require.NoError(t, err)

	_, err = cmd.Output()
	require.Error(t, err)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, "broken", runErr.Stderr)
}

func TestScriptExecutor(t *testing.T) {
	exec := &ScriptExecutor{Scripts: map[string]string{
		"conda": `echo "stub $*"`,
	}}
	sb := NewSafeBuilderWithExecutor(exec)

	cmd, err := sb.Build(context.Background(), "conda", "env", "export")
	require.NoError(t, err)
	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Equal(t, "stub env export\n", string(out))

	cmd, err = sb.Build(context.Background(), "/bin/sh", "-c", "echo passthrough")
	require.NoError(t, err)
	out, err = cmd.Output()
	require.NoError(t, err)
	assert.Equal(t, "passthrough\n", string(out))
}
