package envdesc

import (
	"github.com/grovetools/provenance/command"
	"github.com/grovetools/provenance/config"
)

// NewResolverFromConfig builds a resolver that follows the environment
// section of prov.yml and exports through builder. Empty fields keep the
// defaults.
func NewResolverFromConfig(cfg config.EnvironmentConfig, builder *command.SafeBuilder) *Resolver {
	r := NewResolver(NewCommandExporter(cfg.ExportCommand, builder))
	if builder != nil {
		r.builder = builder
	}
	if cfg.NameVar != "" {
		r.NameVar = cfg.NameVar
	}
	if cfg.Prefix != "" {
		r.Prefix = cfg.Prefix
	}
	if cfg.Suffix != "" {
		r.Suffix = cfg.Suffix
	}
	if len(cfg.Patterns) > 0 {
		r.Patterns = append([]string{}, cfg.Patterns...)
	}
	return r
}
