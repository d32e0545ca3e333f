package record

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/util/pathutil"
)

// DefaultSuffix replaces the artifact's extension to name its sidecar.
const DefaultSuffix = ".meta.json"

// SidecarPath returns a free sidecar path for artifact: the artifact path
// without its extension plus suffix, with _N inserted before the final
// extension when that name is taken.
func SidecarPath(artifact, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return pathutil.Unique(pathutil.TrimExt(artifact) + suffix)
}

// WriteFile atomically writes data to path: a temp file in the same
// directory is written, synced and renamed into place.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRecordWrite, "creating temp record file").
			WithDetail("path", path)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, errors.ErrCodeRecordWrite, "writing record").WithDetail("path", path)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return errors.Wrap(err, errors.ErrCodeRecordWrite, "syncing record").WithDetail("path", path)
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, errors.ErrCodeRecordWrite, "closing temp record file").WithDetail("path", path)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return errors.Wrap(err, errors.ErrCodeRecordWrite, "setting record permissions").WithDetail("path", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Wrap(err, errors.ErrCodeRecordWrite, fmt.Sprintf("renaming record to %s", path)).
			WithDetail("path", path)
	}

	success = true
	return nil
}

// Write encodes r with enc (the default encoder when nil) and writes it to
// path.
func Write(path string, r *Record, enc *Encoder) error {
	if enc == nil {
		enc = NewEncoder()
	}
	data, err := enc.Encode(r.Fields())
	if err != nil {
		return err
	}
	return WriteFile(path, data)
}

// Read loads and decodes the sidecar at path.
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRecordInvalid, fmt.Sprintf("reading record %s", path)).
			WithDetail("path", path)
	}
	r, err := Unmarshal(data)
	if err != nil {
		if pe, ok := errors.As(err); ok {
			return nil, pe.WithDetail("path", path)
		}
		return nil, err
	}
	return r, nil
}
