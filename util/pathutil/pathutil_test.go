package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestUnique_FreePathIsReturnedAsIs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.meta.json")
	assert.Equal(t, path, Unique(path))
}

func TestUnique_Sequence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.meta.json")

	touch(t, path)
	assert.Equal(t, filepath.Join(dir, "out.meta_1.json"), Unique(path))

	touch(t, filepath.Join(dir, "out.meta_1.json"))
	assert.Equal(t, filepath.Join(dir, "out.meta_2.json"), Unique(path))
}

func TestUnique_SkipsTakenSuffixes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ENV_base_20240301.yml")
	touch(t, path)
	touch(t, filepath.Join(dir, "ENV_base_20240301_1.yml"))
	touch(t, filepath.Join(dir, "ENV_base_20240301_2.yml"))

	assert.Equal(t, filepath.Join(dir, "ENV_base_20240301_3.yml"), Unique(path))
}

func TestUnique_GapIsFilledFromOne(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	touch(t, path)
	touch(t, filepath.Join(dir, "a_2.txt"))

	assert.Equal(t, filepath.Join(dir, "a_1.txt"), Unique(path))
}

func TestUnique_NoExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "results")
	touch(t, path)

	assert.Equal(t, filepath.Join(dir, "results_1"), Unique(path))
}

func TestSplitExt(t *testing.T) {
	tests := []struct {
		path     string
		wantBase string
		wantExt  string
	}{
		{"out.txt", "out", ".txt"},
		{"data/out.meta.json", "data/out.meta", ".json"},
		{"run.v2/out", "run.v2/out", ""},
		{".env", ".env", ""},
		{"archive.tar.gz", "archive.tar", ".gz"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			base, ext := SplitExt(tt.path)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
	assert.Equal(t, "data/out", TrimExt("data/out.csv"))
}

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("PROV_TEST_DIR", "results")

	got, err := Expand("~/experiments/$PROV_TEST_DIR")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "experiments", "results"), got)

	got, err = Expand("relative")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(got))
}
