package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Default values applied by SetDefaults.
const (
	DefaultVersion          = "1.0"
	DefaultEnvNameVar       = "CONDA_DEFAULT_ENV"
	DefaultDescriptorPrefix = "ENV_"
	DefaultDescriptorSuffix = ".yml"
	DefaultSidecarSuffix    = ".meta.json"
)

// DefaultExportCommand is the environment export run when none is configured.
var DefaultExportCommand = []string{"conda", "env", "export"}

// DefaultDescriptorPatterns identify existing descriptor files in a directory.
var DefaultDescriptorPatterns = []string{"*.yml"}

// EnvironmentConfig controls how environment descriptors are produced and
// recognized.
type EnvironmentConfig struct {
	NameVar       string   `yaml:"name_var,omitempty" toml:"name_var,omitempty" jsonschema:"description=Process environment variable naming the active environment,pattern=^[A-Za-z_][A-Za-z0-9_]*$"`
	ExportCommand []string `yaml:"export_command,omitempty" toml:"export_command,omitempty" jsonschema:"description=Command whose stdout is the environment descriptor,minItems=1"`
	Prefix        string   `yaml:"prefix,omitempty" toml:"prefix,omitempty" jsonschema:"description=File name prefix for new descriptors,pattern=^[^/\\\\]*$"`
	Suffix        string   `yaml:"suffix,omitempty" toml:"suffix,omitempty" jsonschema:"description=File name suffix for new descriptors,pattern=^\\.[^/\\\\]+$"`
	Patterns      []string `yaml:"patterns,omitempty" toml:"patterns,omitempty" jsonschema:"description=Patterns identifying existing descriptor files"`
}

// RevisionConfig controls the code revision lookup.
type RevisionConfig struct {
	// Dir is the working tree queried for HEAD. Empty means the current
	// directory.
	Dir string `yaml:"dir,omitempty" toml:"dir,omitempty" jsonschema:"description=Working tree to read the revision from (default: current directory)"`
}

// SidecarConfig controls naming of metadata sidecar files.
type SidecarConfig struct {
	Suffix string `yaml:"suffix,omitempty" toml:"suffix,omitempty" jsonschema:"description=Suffix replacing the artifact extension,pattern=^\\.[^/\\\\]+$"`
}

// Config is the merged content of prov.yml files.
type Config struct {
	Version        string            `yaml:"version,omitempty" toml:"version,omitempty" jsonschema:"description=Configuration version (e.g. 1.0)"`
	Environment    EnvironmentConfig `yaml:"environment,omitempty" toml:"environment,omitempty" jsonschema:"description=Environment descriptor settings"`
	Revision       RevisionConfig    `yaml:"revision,omitempty" toml:"revision,omitempty" jsonschema:"description=Code revision lookup settings"`
	Sidecar        SidecarConfig     `yaml:"sidecar,omitempty" toml:"sidecar,omitempty" jsonschema:"description=Metadata sidecar settings"`
	CommandTimeout string            `yaml:"command_timeout,omitempty" toml:"command_timeout,omitempty" jsonschema:"description=Timeout for external commands such as git and the environment export (0 or empty: none)"`

	// Extensions captures all other top-level keys for extensibility.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" jsonschema:"-"`

	sources []string
}

// SetDefaults fills every unset field with its default.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Environment.NameVar == "" {
		c.Environment.NameVar = DefaultEnvNameVar
	}
	if len(c.Environment.ExportCommand) == 0 {
		c.Environment.ExportCommand = append([]string{}, DefaultExportCommand...)
	}
	if c.Environment.Prefix == "" {
		c.Environment.Prefix = DefaultDescriptorPrefix
	}
	if c.Environment.Suffix == "" {
		c.Environment.Suffix = DefaultDescriptorSuffix
	}
	if len(c.Environment.Patterns) == 0 {
		c.Environment.Patterns = append([]string{}, DefaultDescriptorPatterns...)
	}
	if c.Sidecar.Suffix == "" {
		c.Sidecar.Suffix = DefaultSidecarSuffix
	}
}

// Default returns a configuration holding only default values.
func Default() *Config {
	c := &Config{}
	c.SetDefaults()
	return c
}

// Timeout returns the parsed command timeout. Invalid values are rejected
// by Validate, so they read as zero here.
func (c *Config) Timeout() time.Duration {
	if c.CommandTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.CommandTimeout)
	if err != nil {
		return 0
	}
	return d
}

// Sources lists the files merged into this configuration, lowest
// precedence first.
func (c *Config) Sources() []string {
	return append([]string{}, c.sources...)
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded prov.yml into the provided target struct. The target must be a
// pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		// The target struct will simply remain zero-valued.
		return nil
	}

	// Use mapstructure to decode the generic map[string]interface{}
	// into the strongly-typed target struct. We configure it to use
	// `yaml` tags for consistency.
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
