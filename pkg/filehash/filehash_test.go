package filehash

import (
	"bytes"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestFile_KnownDigests(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"empty", "", "da39a3ee5e6b4b0d3255bfef95601890afd80709"},
		{"hello", "hello", "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := File(writeTemp(t, []byte(tt.content)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFile_Idempotent(t *testing.T) {
	path := writeTemp(t, []byte("some experiment output\n"))

	first, err := File(path)
	require.NoError(t, err)
	second, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFile_OneByteDifference(t *testing.T) {
	a, err := File(writeTemp(t, []byte("result=0.9131")))
	require.NoError(t, err)
	b, err := File(writeTemp(t, []byte("result=0.9132")))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFileChunked_SpansManyChunks(t *testing.T) {
	// 2.5 chunks of a repeating pattern, hashed with a tiny chunk size too.
	content := bytes.Repeat([]byte("0123456789abcdef"), (ChunkSize*5/2)/16)
	sum := sha1.Sum(content) //nolint:gosec
	want := hex.EncodeToString(sum[:])

	path := writeTemp(t, content)
	for _, size := range []int{ChunkSize, 7, 0} {
		got, err := FileChunked(path, size)
		require.NoError(t, err)
		assert.Equal(t, want, got, "chunk size %d", size)
	}
}

func TestReader(t *testing.T) {
	got, err := Reader(bytes.NewReader([]byte("hello")))
	require.NoError(t, err)
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", got)
}

func TestFile_Missing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
