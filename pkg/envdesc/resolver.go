// Package envdesc resolves the environment descriptor for a directory of
// artifacts: the active environment is exported, and the export is stored
// beside the artifacts unless a file with identical content already exists
// there.
package envdesc

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/grovetools/provenance/command"
	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/pkg/clock"
	"github.com/grovetools/provenance/pkg/filehash"
	"github.com/grovetools/provenance/util/pathutil"
	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
)

// Defaults for descriptor naming and discovery.
const (
	DefaultNameVar = "CONDA_DEFAULT_ENV"
	DefaultPrefix  = "ENV_"
	DefaultSuffix  = ".yml"
	dateLayout     = "20060102"
)

// DefaultPatterns identify descriptor files among a directory's entries.
var DefaultPatterns = []string{"*.yml"}

// Descriptor is the resolved descriptor file.
type Descriptor struct {
	Path    string
	Hash    string
	EnvName string
	// Reused is set when an existing file had identical content and no new
	// file was written.
	Reused bool
}

// Resolver finds or creates the descriptor for a directory.
type Resolver struct {
	NameVar  string
	Prefix   string
	Suffix   string
	Patterns []string
	Exporter Exporter
	Clock    clock.Clock

	builder   *command.SafeBuilder
	lookupEnv func(string) (string, bool)
	logger    logrus.FieldLogger
}

// NewResolver creates a resolver with default naming that exports through
// exporter.
func NewResolver(exporter Exporter) *Resolver {
	return &Resolver{
		NameVar:   DefaultNameVar,
		Prefix:    DefaultPrefix,
		Suffix:    DefaultSuffix,
		Patterns:  append([]string{}, DefaultPatterns...),
		Exporter:  exporter,
		Clock:     clock.Real(),
		builder:   command.NewSafeBuilder(),
		lookupEnv: os.LookupEnv,
		logger:    logrus.StandardLogger(),
	}
}

// WithLogger sets the logger.
func (r *Resolver) WithLogger(logger logrus.FieldLogger) *Resolver {
	r.logger = logger
	return r
}

// WithClock sets the clock that dates new descriptors.
func (r *Resolver) WithClock(c clock.Clock) *Resolver {
	r.Clock = c
	return r
}

// WithEnvLookup overrides how the environment name variable is read.
func (r *Resolver) WithEnvLookup(lookup func(string) (string, bool)) *Resolver {
	r.lookupEnv = lookup
	return r
}

// Resolve returns the descriptor for dir. Existing descriptors are never
// modified or removed.
func (r *Resolver) Resolve(ctx context.Context, dir string) (*Descriptor, error) {
	logger := r.logger.WithField("dir", dir)

	existing, err := r.existingDescriptors(dir)
	if err != nil {
		return nil, err
	}

	envName, err := r.envName()
	if err != nil {
		return nil, err
	}

	tmpPath, hash, err := r.export(ctx)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpPath)

	for _, candidate := range existing {
		if candidate.hash == hash {
			logger.WithField("path", candidate.path).Debug("Reusing environment descriptor with identical content")
			return &Descriptor{Path: candidate.path, Hash: hash, EnvName: envName, Reused: true}, nil
		}
	}

	name := fmt.Sprintf("%s%s_%s%s", r.Prefix, envName, r.Clock.Now().Format(dateLayout), r.Suffix)
	target, err := copyToUnique(tmpPath, filepath.Join(dir, name))
	if err != nil {
		return nil, err
	}
	logger.WithField("path", target).Info("Wrote new environment descriptor")

	return &Descriptor{Path: target, Hash: hash, EnvName: envName}, nil
}

type hashedFile struct {
	path string
	hash string
}

// existingDescriptors hashes the regular files in dir that match the
// descriptor patterns, in name order.
func (r *Resolver) existingDescriptors(dir string) ([]hashedFile, error) {
	patterns := r.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid descriptor patterns").
			WithDetail("patterns", patterns)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "listing descriptor directory").
			WithDetail("dir", dir)
	}

	var files []hashedFile
	for _, entry := range entries {
		// Hidden files are never descriptors.
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		matched, err := matcher.MatchesOrParentMatches(entry.Name())
		if err != nil || !matched {
			continue
		}
		candidate := filepath.Join(dir, entry.Name())
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		hash, err := filehash.File(candidate)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "hashing existing descriptor").
				WithDetail("path", candidate)
		}
		files = append(files, hashedFile{path: candidate, hash: hash})
	}
	return files, nil
}

// envName reads the active environment name. Prefix activations report a
// path; its last element names the environment.
func (r *Resolver) envName() (string, error) {
	lookup := r.lookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, _ := lookup(r.NameVar)
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.EnvNameUnset(r.NameVar)
	}
	if strings.ContainsAny(value, `/\`) {
		value = path.Base(strings.ReplaceAll(value, `\`, "/"))
	}
	if err := r.builder.Validate("envName", value); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "environment name cannot be used in a file name").
			WithDetail("variable", r.NameVar).
			WithDetail("value", value)
	}
	return value, nil
}

// export runs the exporter into a private temp file and hashes it.
func (r *Resolver) export(ctx context.Context) (string, string, error) {
	if r.Exporter == nil {
		return "", "", errors.New(errors.ErrCodeEnvExportFailed, "no environment exporter configured")
	}

	tmpFile, err := os.CreateTemp("", "prov-env-*"+r.Suffix)
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrCodeEnvExportFailed, "creating temp descriptor")
	}
	tmpPath := tmpFile.Name()

	exportErr := r.Exporter.Export(ctx, tmpFile)
	closeErr := tmpFile.Close()
	if exportErr == nil && closeErr != nil {
		exportErr = errors.Wrap(closeErr, errors.ErrCodeEnvExportFailed, "closing temp descriptor")
	}
	if exportErr != nil {
		os.Remove(tmpPath)
		if errors.GetCode(exportErr) == "" {
			exportErr = errors.Wrap(exportErr, errors.ErrCodeEnvExportFailed, "environment export failed")
		}
		return "", "", exportErr
	}

	hash, err := filehash.File(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return "", "", errors.Wrap(err, errors.ErrCodeEnvExportFailed, "hashing exported descriptor")
	}
	return tmpPath, hash, nil
}

// copyToUnique copies src to the first free variant of target. The
// destination is opened with O_EXCL so a file created concurrently is
// never overwritten; the next free name is tried instead.
func copyToUnique(src, target string) (string, error) {
	for {
		candidate := pathutil.Unique(target)
		dst, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, errors.ErrCodeRecordWrite, "creating environment descriptor").
				WithDetail("path", candidate)
		}

		if err := copyInto(dst, src); err != nil {
			os.Remove(candidate)
			return "", errors.Wrap(err, errors.ErrCodeRecordWrite, "writing environment descriptor").
				WithDetail("path", candidate)
		}
		return candidate, nil
	}
}

func copyInto(dst *os.File, src string) error {
	in, err := os.Open(src)
	if err != nil {
		dst.Close()
		return err
	}
	defer in.Close()

	if _, err := io.Copy(dst, in); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
