package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/grovetools/provenance/command"
	"github.com/grovetools/provenance/errors"
	"github.com/moby/patternmatcher"
)

// Validate checks the semantic rules the schema cannot express.
func (c *Config) Validate() error {
	builder := command.NewSafeBuilder()

	if c.Environment.NameVar != "" {
		if err := builder.Validate("envVarName", c.Environment.NameVar); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid environment.name_var").
				WithDetail("value", c.Environment.NameVar)
		}
	}

	if len(c.Environment.ExportCommand) > 0 && strings.TrimSpace(c.Environment.ExportCommand[0]) == "" {
		return errors.New(errors.ErrCodeConfigValidation, "environment.export_command must name a program")
	}

	if strings.ContainsAny(c.Environment.Prefix, `/\`) {
		return errors.New(errors.ErrCodeConfigValidation, "environment.prefix must not contain path separators").
			WithDetail("value", c.Environment.Prefix)
	}

	if err := validateSuffix("environment.suffix", c.Environment.Suffix); err != nil {
		return err
	}
	if err := validateSuffix("sidecar.suffix", c.Sidecar.Suffix); err != nil {
		return err
	}

	if len(c.Environment.Patterns) > 0 {
		if _, err := patternmatcher.New(c.Environment.Patterns); err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid environment.patterns").
				WithDetail("patterns", c.Environment.Patterns)
		}
	}

	if c.CommandTimeout != "" {
		d, err := time.ParseDuration(c.CommandTimeout)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeConfigValidation, "invalid command_timeout").
				WithDetail("value", c.CommandTimeout)
		}
		if d < 0 || d > command.MaxTimeout {
			return errors.New(errors.ErrCodeConfigValidation,
				fmt.Sprintf("command_timeout must be between 0 and %s", command.MaxTimeout)).
				WithDetail("value", c.CommandTimeout)
		}
	}

	return nil
}

func validateSuffix(field, suffix string) error {
	if suffix == "" {
		return nil
	}
	if !strings.HasPrefix(suffix, ".") || len(suffix) < 2 {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must start with '.'", field)).
			WithDetail("value", suffix)
	}
	if strings.ContainsAny(suffix, `/\`) {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must not contain path separators", field)).
			WithDetail("value", suffix)
	}
	return nil
}
