package git

import (
	"context"
	"strings"

	"github.com/grovetools/provenance/command"
	"github.com/sirupsen/logrus"
)

// UnknownRevision is reported when the revision cannot be determined:
// git is not installed, the directory is not a repository, or HEAD has
// no commits yet.
const UnknownRevision = "Unknown"

// RevisionLookup reads the HEAD revision of a working tree.
type RevisionLookup struct {
	// Dir is the directory git runs in. Empty means the process's
	// current directory.
	Dir string

	builder *command.SafeBuilder
	lookup  func(string) (string, bool)
	logger  logrus.FieldLogger
}

// NewRevisionLookup creates a lookup for dir using the real git binary.
func NewRevisionLookup(dir string) *RevisionLookup {
	return NewRevisionLookupWithBuilder(dir, command.NewSafeBuilder())
}

// NewRevisionLookupWithBuilder creates a lookup that builds its git
// invocations with builder.
func NewRevisionLookupWithBuilder(dir string, builder *command.SafeBuilder) *RevisionLookup {
	return &RevisionLookup{
		Dir:     dir,
		builder: builder,
		logger:  logrus.StandardLogger(),
	}
}

// WithLogger sets the logger used to report lookup failures.
func (l *RevisionLookup) WithLogger(logger logrus.FieldLogger) *RevisionLookup {
	l.logger = logger
	return l
}

// WithEnvLookup overrides how forwarded variables are read from the
// calling process.
func (l *RevisionLookup) WithEnvLookup(lookup func(string) (string, bool)) *RevisionLookup {
	l.lookup = lookup
	return l
}

// Revision returns the full HEAD commit hash, or UnknownRevision if git
// cannot answer. It never fails.
func (l *RevisionLookup) Revision(ctx context.Context) string {
	cmd, err := l.builder.Build(ctx, "git", "rev-parse", "HEAD")
	if err != nil {
		l.logger.WithError(err).Warn("Failed to build git command")
		return UnknownRevision
	}
	cmd.WithEnv(MinimalEnv(l.lookup)).WithDir(l.Dir)

	output, err := cmd.Output()
	if err != nil {
		l.logger.WithError(err).WithField("dir", l.Dir).Warn("Could not determine git revision")
		return UnknownRevision
	}

	revision := strings.TrimSpace(string(output))
	if revision == "" {
		return UnknownRevision
	}
	return revision
}

// CurrentRevision returns the HEAD revision of dir, or UnknownRevision.
func CurrentRevision(ctx context.Context, dir string) string {
	return NewRevisionLookup(dir).Revision(ctx)
}
