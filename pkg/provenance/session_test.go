package provenance

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/provenance/config"
	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/git"
	"github.com/grovetools/provenance/pkg/clock"
	"github.com/grovetools/provenance/pkg/envdesc"
	"github.com/grovetools/provenance/pkg/record"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloHash = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"

var t0 = time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)

// revisions returns successive values from a fixed list, repeating the
// last one.
type revisions struct {
	mu     sync.Mutex
	values []string
	calls  int
}

func (r *revisions) Revision(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	if i >= len(r.values) {
		i = len(r.values) - 1
	}
	r.calls++
	return r.values[i]
}

func fixedRevision(rev string) *revisions {
	return &revisions{values: []string{rev}}
}

func staticExporter(content string) envdesc.Exporter {
	return envdesc.ExporterFunc(func(ctx context.Context, w io.Writer) error {
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

type harness struct {
	dir    string
	clock  *clock.FakeClock
	logger *logrus.Logger
	hook   *test.Hook
	rev    RevisionSource
	env    map[string]string
	export string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return &harness{
		dir:    t.TempDir(),
		clock:  clock.Fake(t0).AutoStep(time.Second),
		logger: logger,
		hook:   hook,
		rev:    fixedRevision("4b825dc642cb6eb9a060e54bf8d69288fbee4904"),
		env:    map[string]string{"CONDA_DEFAULT_ENV": "analysis"},
		export: "name: analysis\n",
	}
}

func (h *harness) opts(extra ...Option) []Option {
	resolver := envdesc.NewResolver(staticExporter(h.export)).
		WithClock(h.clock).
		WithEnvLookup(envLookup(h.env)).
		WithLogger(h.logger)
	opts := []Option{
		WithClock(h.clock),
		WithLogger(h.logger),
		WithRevisionSource(h.rev),
		WithDescriptorResolver(resolver),
		WithGetwd(func() (string, error) { return "/work", nil }),
	}
	return append(opts, extra...)
}

func (h *harness) path(name string) string {
	return filepath.Join(h.dir, name)
}

func writeHello(path string) func(context.Context) error {
	return func(ctx context.Context) error {
		return os.WriteFile(path, []byte("hello"), 0o644)
	}
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCaptureWritesSidecar(t *testing.T) {
	h := newHarness(t)
	artifact := h.path("out.txt")

	res, err := Capture(context.Background(), artifact, writeHello(artifact), h.opts(WithLabel("unit"))...)
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, h.path("out.meta.json"), res.SidecarPath)
	assert.Equal(t, helloHash, res.Record.FileHash)
	assert.False(t, res.Record.EndTime.Before(res.Record.StartTime))
	assert.Equal(t, res.Record.EndTime.Sub(res.Record.StartTime), res.Record.Duration)
	assert.Equal(t, "/work", res.Record.WorkingDirectory)
	assert.Equal(t, "unit", res.Record.Label)
	assert.Equal(t, artifact, res.Record.ArtifactPath)
	assert.NotEmpty(t, res.Record.InvocationID)

	onDisk, err := record.Read(res.SidecarPath)
	require.NoError(t, err)
	assert.Equal(t, helloHash, onDisk.FileHash)
	assert.True(t, onDisk.StartTime.Equal(t0))
	assert.Equal(t, res.Record.Duration, onDisk.Duration)
	assert.Equal(t, h.path("ENV_analysis_20240305.yml"), onDisk.EnvironmentDescriptorPath)
}

func TestCaptureDisambiguatesExistingSidecar(t *testing.T) {
	h := newHarness(t)
	artifact := h.path("out.txt")
	previous := []byte(`{"prior": true}`)
	require.NoError(t, os.WriteFile(h.path("out.meta.json"), previous, 0o644))

	res, err := Capture(context.Background(), artifact, writeHello(artifact), h.opts()...)
	require.NoError(t, err)
	assert.Equal(t, h.path("out.meta_1.json"), res.SidecarPath)

	data, err := os.ReadFile(h.path("out.meta.json"))
	require.NoError(t, err)
	assert.Equal(t, previous, data)
}

func TestCaptureWorkErrorWritesNothing(t *testing.T) {
	h := newHarness(t)
	artifact := h.path("out.txt")
	workErr := stderrors.New("simulation diverged")

	res, err := Capture(context.Background(), artifact, func(ctx context.Context) error {
		return workErr
	}, h.opts()...)

	assert.Nil(t, res)
	assert.Same(t, workErr, err)
	assert.Empty(t, dirNames(t, h.dir))
}

func TestCaptureWorkPanicWritesNothing(t *testing.T) {
	h := newHarness(t)
	artifact := h.path("out.txt")

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = Capture(context.Background(), artifact, func(ctx context.Context) error {
			if err := os.WriteFile(artifact, []byte("partial"), 0o644); err != nil {
				return err
			}
			panic("boom")
		}, h.opts()...)
	})
	assert.Equal(t, []string{"out.txt"}, dirNames(t, h.dir))
}

func TestCaptureReusesDescriptorAcrossSessions(t *testing.T) {
	h := newHarness(t)
	first := h.path("a.txt")
	second := h.path("b.txt")

	r1, err := Capture(context.Background(), first, writeHello(first), h.opts()...)
	require.NoError(t, err)
	r2, err := Capture(context.Background(), second, writeHello(second), h.opts()...)
	require.NoError(t, err)

	assert.Equal(t, r1.Record.EnvironmentDescriptorPath, r2.Record.EnvironmentDescriptorPath)
	assert.False(t, r1.Descriptor.Reused)
	assert.True(t, r2.Descriptor.Reused)

	var descriptors int
	for _, name := range dirNames(t, h.dir) {
		if strings.HasPrefix(name, "ENV_") {
			descriptors++
		}
	}
	assert.Equal(t, 1, descriptors)
}

func TestFinishRevisionChanged(t *testing.T) {
	h := newHarness(t)
	h.rev = &revisions{values: []string{"aaaa", "bbbb"}}
	artifact := h.path("out.txt")

	res, err := Capture(context.Background(), artifact, writeHello(artifact), h.opts()...)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, errors.ErrCodeRevisionChanged))

	pe, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, "aaaa", pe.Details["start_revision"])
	assert.Equal(t, "bbbb", pe.Details["end_revision"])

	assert.Equal(t, []string{"out.txt"}, dirNames(t, h.dir))

	var logged bool
	for _, entry := range h.hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			logged = true
		}
	}
	assert.True(t, logged, "revision change must be logged at error level")
}

func TestFinishUnknownRevisionIsConsistent(t *testing.T) {
	h := newHarness(t)
	h.rev = fixedRevision(git.UnknownRevision)
	artifact := h.path("out.txt")

	_, err := Capture(context.Background(), artifact, writeHello(artifact), h.opts()...)
	require.NoError(t, err)
}

func TestFinishArtifactMissing(t *testing.T) {
	h := newHarness(t)

	_, err := Capture(context.Background(), h.path("never.txt"), func(ctx context.Context) error {
		return nil
	}, h.opts()...)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeArtifactMissing))
	assert.Empty(t, dirNames(t, h.dir))
}

func TestFinishEnvNameUnset(t *testing.T) {
	h := newHarness(t)
	h.env = map[string]string{}
	artifact := h.path("out.txt")

	_, err := Capture(context.Background(), artifact, writeHello(artifact), h.opts()...)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeEnvNameUnset))
	assert.Equal(t, []string{"out.txt"}, dirNames(t, h.dir))
}

func TestFinishTwice(t *testing.T) {
	h := newHarness(t)
	artifact := h.path("out.txt")
	require.NoError(t, os.WriteFile(artifact, []byte("hello"), 0o644))

	s := Start(context.Background(), artifact, h.opts()...)
	_, err := s.Finish(context.Background())
	require.NoError(t, err)

	_, err = s.Finish(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
	assert.Equal(t, []string{"ENV_analysis_20240305.yml", "out.meta.json", "out.txt"}, dirNames(t, h.dir))
}

func TestStartCapturesStartState(t *testing.T) {
	h := newHarness(t)
	rev := fixedRevision("abc")

	s := Start(context.Background(), h.path("x.txt"), h.opts(WithRevisionSource(rev))...)
	assert.True(t, s.StartTime().Equal(t0))
	assert.Equal(t, 1, rev.calls)
	assert.Len(t, s.InvocationID(), 36)
}

func TestCallStackInnermostFirst(t *testing.T) {
	h := newHarness(t)
	artifact := h.path("out.txt")

	res, err := Capture(context.Background(), artifact, writeHello(artifact), h.opts()...)
	require.NoError(t, err)

	stack := res.Record.CallStack
	require.NotEmpty(t, stack)
	assert.Contains(t, stack[0], "session_test.go")
	assert.Contains(t, stack[0], "TestCallStackInnermostFirst")
	for _, frame := range stack {
		assert.NotContains(t, frame, "provenance.Capture")
		assert.NotContains(t, frame, "provenance.(*Session).Finish")
	}
}

func TestCustomFieldsAndEncoder(t *testing.T) {
	type shape struct{ Rows, Cols int }

	h := newHarness(t)
	artifact := h.path("grid.npy")
	enc := record.NewEncoder().Register(shape{}, func(v interface{}) (interface{}, error) {
		s := v.(shape)
		return []int{s.Rows, s.Cols}, nil
	})

	res, err := Capture(context.Background(), artifact, writeHello(artifact), h.opts(
		WithEncoder(enc),
		WithField("shape", shape{Rows: 3, Cols: 4}),
		WithLabels(map[string]string{"seed": "7"}),
	)...)
	require.NoError(t, err)

	onDisk, err := record.Read(res.SidecarPath)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{float64(3), float64(4)}, onDisk.Extra["shape"])
	assert.Equal(t, map[string]string{"seed": "7"}, onDisk.Labels)
}

func TestUnsupportedFieldWritesNothing(t *testing.T) {
	h := newHarness(t)
	artifact := h.path("out.txt")

	_, err := Capture(context.Background(), artifact, writeHello(artifact), h.opts(
		WithField("handle", make(chan int)),
	)...)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeUnsupportedType))
	assert.NotContains(t, dirNames(t, h.dir), "out.meta.json")
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PROV_TEST_ENV_NAME", "cfgenv")

	cfg, err := config.LoadFromBytes([]byte(`
environment:
  name_var: PROV_TEST_ENV_NAME
  export_command: [sh, -c, "printf 'name: cfgenv\n'"]
  prefix: DEPS_
revision:
  dir: ` + dir + `
sidecar:
  suffix: .prov.json
command_timeout: 30s
`))
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	artifact := filepath.Join(dir, "model.bin")

	res, err := Capture(context.Background(), artifact, writeHello(artifact),
		FromConfig(cfg),
		WithLogger(logger),
		WithClock(clock.Fake(t0)),
	)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "model.prov.json"), res.SidecarPath)
	assert.Equal(t, filepath.Join(dir, "DEPS_cfgenv_20240305.yml"), res.Descriptor.Path)

	data, err := os.ReadFile(res.Descriptor.Path)
	require.NoError(t, err)
	assert.Equal(t, "name: cfgenv\n", string(data))
}
