// Package filehash computes content digests of artifact and descriptor
// files. Files are streamed through SHA-1 in fixed-size chunks so memory
// use stays constant regardless of file size.
package filehash

import (
	"crypto/sha1" //nolint:gosec // content identity, not a security boundary
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ChunkSize is the read size used when streaming a file into the hash.
const ChunkSize = 1 << 20

// File returns the hex-encoded SHA-1 digest of the file at path.
func File(path string) (string, error) {
	return FileChunked(path, ChunkSize)
}

// FileChunked is File with an explicit read size.
func FileChunked(path string, chunkSize int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	digest, err := readerChunked(f, chunkSize)
	if err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return digest, nil
}

// Reader returns the hex-encoded SHA-1 digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	return readerChunked(r, ChunkSize)
}

func readerChunked(r io.Reader, chunkSize int) (string, error) {
	if chunkSize <= 0 {
		chunkSize = ChunkSize
	}

	hasher := sha1.New() //nolint:gosec
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(hasher, onlyReader{r}, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// onlyReader hides WriterTo so io.CopyBuffer really uses the chunk buffer.
type onlyReader struct {
	io.Reader
}
