package provenance

import (
	"context"
	"os"

	"github.com/grovetools/provenance/command"
	"github.com/grovetools/provenance/config"
	"github.com/grovetools/provenance/git"
	"github.com/grovetools/provenance/pkg/clock"
	"github.com/grovetools/provenance/pkg/envdesc"
	"github.com/grovetools/provenance/pkg/record"
	"github.com/sirupsen/logrus"
)

// RevisionSource reports the current code revision. It must not fail;
// git.UnknownRevision stands in for an unavailable answer.
type RevisionSource interface {
	Revision(ctx context.Context) string
}

// DescriptorResolver finds or creates the environment descriptor for a
// directory.
type DescriptorResolver interface {
	Resolve(ctx context.Context, dir string) (*envdesc.Descriptor, error)
}

// Option configures a session.
type Option func(*options)

type options struct {
	label         string
	labels        map[string]string
	extra         map[string]interface{}
	clock         clock.Clock
	logger        logrus.FieldLogger
	revision      RevisionSource
	resolver      DescriptorResolver
	encoder       *record.Encoder
	sidecarSuffix string
	getwd         func() (string, error)

	cfg *config.Config
}

// WithLabel names the calling context (component, job) in the record.
func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

// WithLabels adds free-form key/value context to the record.
func WithLabels(labels map[string]string) Option {
	return func(o *options) {
		if o.labels == nil {
			o.labels = make(map[string]string, len(labels))
		}
		for k, v := range labels {
			o.labels[k] = v
		}
	}
}

// WithField adds a custom top-level value to the record. Values that are
// not plain JSON need a converter registered on the encoder (WithEncoder).
func WithField(key string, value interface{}) Option {
	return func(o *options) {
		if o.extra == nil {
			o.extra = make(map[string]interface{})
		}
		o.extra[key] = value
	}
}

// WithEncoder replaces the record encoder.
func WithEncoder(enc *record.Encoder) Option {
	return func(o *options) { o.encoder = enc }
}

// WithClock sets the clock used for start/end times and descriptor dates.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the session logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRevisionSource replaces the git revision lookup.
func WithRevisionSource(src RevisionSource) Option {
	return func(o *options) { o.revision = src }
}

// WithDescriptorResolver replaces the environment descriptor resolver.
func WithDescriptorResolver(r DescriptorResolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithSidecarSuffix sets the suffix that replaces the artifact extension.
func WithSidecarSuffix(suffix string) Option {
	return func(o *options) { o.sidecarSuffix = suffix }
}

// WithGetwd replaces how the working directory is read at completion.
func WithGetwd(getwd func() (string, error)) Option {
	return func(o *options) { o.getwd = getwd }
}

// FromConfig applies prov.yml settings. Options given after it still win
// for the pieces they set.
func FromConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// resolveDefaults fills in everything the caller left unset.
func (o *options) resolveDefaults() {
	if o.logger == nil {
		o.logger = logrus.StandardLogger()
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.getwd == nil {
		o.getwd = os.Getwd
	}
	if o.encoder == nil {
		o.encoder = record.NewEncoder()
	}

	cfg := o.cfg
	if cfg == nil {
		cfg = config.Default()
	}
	builder := command.NewSafeBuilder().WithDefaultTimeout(cfg.Timeout())

	if o.sidecarSuffix == "" {
		o.sidecarSuffix = cfg.Sidecar.Suffix
	}
	if o.revision == nil {
		o.revision = git.NewRevisionLookupWithBuilder(cfg.Revision.Dir, builder).WithLogger(o.logger)
	}
	if o.resolver == nil {
		o.resolver = envdesc.NewResolverFromConfig(cfg.Environment, builder).
			WithClock(o.clock).
			WithLogger(o.logger)
	}
}
