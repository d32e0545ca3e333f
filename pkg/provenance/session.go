// Package provenance records how an artifact file was produced. A session
// brackets the work that writes the artifact; when the work completes, a
// metadata sidecar with timing, content hash, working directory, call
// stack and environment descriptor is written next to the artifact.
//
// Typical use:
//
//	res, err := provenance.Capture(ctx, "out/results.csv", func(ctx context.Context) error {
//		return writeResults("out/results.csv")
//	}, provenance.WithLabel("nightly"))
package provenance

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/logging"
	"github.com/grovetools/provenance/pkg/envdesc"
	"github.com/grovetools/provenance/pkg/filehash"
	"github.com/grovetools/provenance/pkg/record"
	"github.com/sirupsen/logrus"
)

const maxStackDepth = 64

// Result describes a recorded artifact.
type Result struct {
	Record      *record.Record
	SidecarPath string
	Descriptor  *envdesc.Descriptor
}

// Session is an open provenance capture for one artifact.
type Session struct {
	ArtifactPath string

	opts          options
	logger        logrus.FieldLogger
	startTime     time.Time
	startRevision string
	invocationID  string
	finished      bool
}

// Start opens a session: the start time and code revision are captured
// and an invocation id is assigned. Start never fails; an unavailable
// revision is recorded as git.UnknownRevision.
func Start(ctx context.Context, artifactPath string, opts ...Option) *Session {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("provenance")
	}
	o.resolveDefaults()

	s := &Session{
		ArtifactPath: artifactPath,
		opts:         o,
		invocationID: uuid.New().String(),
	}
	s.logger = o.logger.WithFields(logrus.Fields{
		"artifact":      artifactPath,
		"invocation_id": s.invocationID,
	})

	s.startTime = o.clock.Now()
	s.startRevision = o.revision.Revision(ctx)
	s.logger.WithField("revision", s.startRevision).Debug("Provenance session started")
	return s
}

// InvocationID returns the id assigned to this session.
func (s *Session) InvocationID() string {
	return s.invocationID
}

// StartTime returns when the session was opened.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// Finish closes a session whose work completed and writes the sidecar.
// Nothing is written when any step fails.
func (s *Session) Finish(ctx context.Context) (*Result, error) {
	if s.finished {
		return nil, errors.New(errors.ErrCodeInvalidInput, "provenance session already finished").
			WithDetail("artifact", s.ArtifactPath)
	}
	s.finished = true

	endRevision := s.opts.revision.Revision(ctx)
	if endRevision != s.startRevision {
		err := errors.RevisionChanged(s.startRevision, endRevision)
		s.logger.WithFields(logrus.Fields{
			"start_revision": s.startRevision,
			"end_revision":   endRevision,
		}).Error("Code revision changed while the artifact was produced; no metadata recorded")
		return nil, err
	}

	endTime := s.opts.clock.Now()
	duration := endTime.Sub(s.startTime)

	fileHash, err := filehash.File(s.ArtifactPath)
	if err != nil {
		return nil, errors.ArtifactMissing(s.ArtifactPath, err)
	}

	workingDir, err := s.opts.getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "reading working directory")
	}
	stack := callStack()

	descriptor, err := s.opts.resolver.Resolve(ctx, filepath.Dir(s.ArtifactPath))
	if err != nil {
		return nil, err
	}

	rec := &record.Record{
		StartTime:                 s.startTime,
		EndTime:                   endTime,
		Duration:                  duration,
		FileHash:                  fileHash,
		WorkingDirectory:          workingDir,
		CallStack:                 stack,
		EnvironmentDescriptorPath: descriptor.Path,
		ArtifactPath:              s.ArtifactPath,
		Label:                     s.opts.label,
		InvocationID:              s.invocationID,
		Labels:                    s.opts.labels,
		Extra:                     s.opts.extra,
	}

	data, err := s.opts.encoder.Encode(rec.Fields())
	if err != nil {
		return nil, err
	}

	sidecar := record.SidecarPath(s.ArtifactPath, s.opts.sidecarSuffix)
	if err := record.WriteFile(sidecar, data); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"sidecar":    sidecar,
		"descriptor": descriptor.Path,
		"duration":   duration.String(),
	}).Info("Recorded artifact provenance")

	return &Result{Record: rec, SidecarPath: sidecar, Descriptor: descriptor}, nil
}

// Capture runs work inside a session. The sidecar is written only when
// work returns nil. A work error is returned unchanged and a panic in work
// propagates; neither writes anything.
func Capture(ctx context.Context, artifactPath string, work func(ctx context.Context) error, opts ...Option) (result *Result, err error) {
	s := Start(ctx, artifactPath, opts...)

	completed := false
	defer func() {
		if !completed {
			s.logger.Debug("Work did not complete; no metadata recorded")
			return
		}
		result, err = s.Finish(ctx)
	}()

	if workErr := work(ctx); workErr != nil {
		return nil, workErr
	}
	completed = true
	return nil, nil
}

// callStack returns the frames of the calling goroutine as
// "file:line function", innermost first. Frames inside this package and
// the Go runtime are left out.
func callStack() []string {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		if !skipFrame(frame) {
			stack = append(stack, fmt.Sprintf("%s:%d %s", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}
	return stack
}

func skipFrame(frame runtime.Frame) bool {
	if strings.HasPrefix(frame.Function, "runtime.") {
		return true
	}
	if strings.HasSuffix(frame.File, "_test.go") {
		return false
	}
	return strings.HasPrefix(frame.Function, "github.com/grovetools/provenance/pkg/provenance.")
}
