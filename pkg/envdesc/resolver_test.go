package envdesc

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grovetools/provenance/command"
	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/pkg/clock"
	"github.com/grovetools/provenance/pkg/filehash"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportBody = "name: analysis\ndependencies:\n  - python=3.11\n"

func staticExporter(content string) Exporter {
	return ExporterFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, content)
		return err
	})
}

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func newTestResolver(t *testing.T, exporter Exporter, env map[string]string) *Resolver {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewResolver(exporter).
		WithClock(clock.Fake(time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC))).
		WithEnvLookup(envLookup(env)).
		WithLogger(logger)
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestResolveCreatesDescriptor(t *testing.T) {
	dir := t.TempDir()
	r := newTestResolver(t, staticExporter(exportBody), map[string]string{"CONDA_DEFAULT_ENV": "analysis"})

	d, err := r.Resolve(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "ENV_analysis_20240305.yml"), d.Path)
	assert.False(t, d.Reused)
	assert.Equal(t, "analysis", d.EnvName)

	data, err := os.ReadFile(d.Path)
	require.NoError(t, err)
	assert.Equal(t, exportBody, string(data))

	want, err := filehash.File(d.Path)
	require.NoError(t, err)
	assert.Equal(t, want, d.Hash)
}

func TestResolveReusesIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "environment.yml")
	require.NoError(t, os.WriteFile(existing, []byte(exportBody), 0o644))

	r := newTestResolver(t, staticExporter(exportBody), map[string]string{"CONDA_DEFAULT_ENV": "analysis"})

	d, err := r.Resolve(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, existing, d.Path)
	assert.True(t, d.Reused)
	assert.Equal(t, []string{"environment.yml"}, listDir(t, dir))
}

func TestResolveOneByteDifferenceCreatesNewFile(t *testing.T) {
	dir := t.TempDir()
	r := newTestResolver(t, staticExporter(exportBody), map[string]string{"CONDA_DEFAULT_ENV": "analysis"})

	first, err := r.Resolve(context.Background(), dir)
	require.NoError(t, err)

	r.Exporter = staticExporter(exportBody + "#")
	second, err := r.Resolve(context.Background(), dir)
	require.NoError(t, err)

	assert.False(t, second.Reused)
	assert.Equal(t, filepath.Join(dir, "ENV_analysis_20240305_1.yml"), second.Path)
	assert.NotEqual(t, first.Hash, second.Hash)

	original, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	assert.Equal(t, exportBody, string(original))
}

func TestResolveIgnoresNonMatchingAndHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "env.txt"), []byte(exportBody), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.yml"), []byte(exportBody), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yml"), 0o755))

	r := newTestResolver(t, staticExporter(exportBody), map[string]string{"CONDA_DEFAULT_ENV": "analysis"})
	d, err := r.Resolve(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, d.Reused)
	assert.Equal(t, "ENV_analysis_20240305.yml", filepath.Base(d.Path))
}

func TestResolveCustomNaming(t *testing.T) {
	dir := t.TempDir()
	r := newTestResolver(t, staticExporter("numpy==1.26\n"), map[string]string{"VENV": "/opt/envs/ml"})
	r.NameVar = "VENV"
	r.Prefix = "PIP_"
	r.Suffix = ".txt"
	r.Patterns = []string{"*.txt"}

	d, err := r.Resolve(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "PIP_ml_20240305.txt"), d.Path)

	again, err := r.Resolve(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, d.Path, again.Path)
}

func TestResolveEnvNameUnset(t *testing.T) {
	dir := t.TempDir()
	called := false
	exporter := ExporterFunc(func(ctx context.Context, w io.Writer) error {
		called = true
		return nil
	})

	for _, env := range []map[string]string{{}, {"CONDA_DEFAULT_ENV": "  "}} {
		r := newTestResolver(t, exporter, env)
		_, err := r.Resolve(context.Background(), dir)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrCodeEnvNameUnset))
	}
	assert.False(t, called)
	assert.Empty(t, listDir(t, dir))
}

func TestResolveRejectsUnsafeName(t *testing.T) {
	r := newTestResolver(t, staticExporter(exportBody), map[string]string{"CONDA_DEFAULT_ENV": "bad name"})
	_, err := r.Resolve(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestResolveExportFailure(t *testing.T) {
	dir := t.TempDir()
	tmp := t.TempDir()
	t.Setenv("TMPDIR", tmp)

	failing := ExporterFunc(func(ctx context.Context, w io.Writer) error {
		_, _ = io.WriteString(w, "partial")
		return stderrors.New("exporter crashed")
	})
	r := newTestResolver(t, failing, map[string]string{"CONDA_DEFAULT_ENV": "analysis"})

	_, err := r.Resolve(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeEnvExportFailed))
	assert.Empty(t, listDir(t, dir))
	assert.Empty(t, listDir(t, tmp), "temp export must be removed")
}

func TestResolveMissingDir(t *testing.T) {
	r := newTestResolver(t, staticExporter(exportBody), map[string]string{"CONDA_DEFAULT_ENV": "analysis"})
	_, err := r.Resolve(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestCopyToUniqueSkipsTakenNames(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))
	target := filepath.Join(dir, "ENV_a_20240305.yml")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	got, err := copyToUnique(src, target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ENV_a_20240305_1.yml"), got)

	old, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(old))
}

func TestCommandExporter(t *testing.T) {
	exec := &command.ScriptExecutor{Scripts: map[string]string{
		"conda": `printf 'name: %s\n' "$3"`,
	}}
	e := NewCommandExporter([]string{"conda", "env", "export", "analysis"}, command.NewSafeBuilderWithExecutor(exec))

	var out stringWriter
	require.NoError(t, e.Export(context.Background(), &out))
	assert.Equal(t, "name: analysis\n", out.String())
}

func TestCommandExporterFailure(t *testing.T) {
	exec := &command.ScriptExecutor{Scripts: map[string]string{
		"conda": `echo "EnvironmentLocationNotFound" >&2; exit 1`,
	}}
	e := NewCommandExporter(nil, command.NewSafeBuilderWithExecutor(exec))

	err := e.Export(context.Background(), io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeEnvExportFailed))
	assert.True(t, errors.Is(err, errors.ErrCodeCommandFailed))
	assert.Contains(t, err.Error(), "EnvironmentLocationNotFound")
}

func TestCommandExporterMissingTool(t *testing.T) {
	e := NewCommandExporter([]string{fmt.Sprintf("prov-no-such-tool-%d", time.Now().UnixNano())}, nil)

	err := e.Export(context.Background(), io.Discard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeEnvExportFailed))
	assert.True(t, errors.Is(err, errors.ErrCodeCommandNotFound))
}

func TestResolveWithCommandExporterLogs(t *testing.T) {
	dir := t.TempDir()
	exec := &command.ScriptExecutor{Scripts: map[string]string{"conda": `printf 'deps: []\n'`}}
	logger, hook := test.NewNullLogger()

	r := NewResolver(NewCommandExporter(nil, command.NewSafeBuilderWithExecutor(exec))).
		WithEnvLookup(envLookup(map[string]string{"CONDA_DEFAULT_ENV": "base"})).
		WithLogger(logger)

	d, err := r.Resolve(context.Background(), dir)
	require.NoError(t, err)
	assert.FileExists(t, d.Path)

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
	assert.Equal(t, d.Path, hook.LastEntry().Data["path"])
}

type stringWriter struct{ buf []byte }

func (w *stringWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

func (w *stringWriter) String() string { return string(w.buf) }
