package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/grovetools/provenance/errors"
	"github.com/grovetools/provenance/git"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// File names recognized by the loader.
const (
	FileName         = "prov.yml"
	OverrideFileName = "prov.override.yml"
	appDirName       = "prov"
)

var configNames = []string{
	"prov.yml",
	"prov.yaml",
	".prov.yml",
	".prov.yaml",
}

var overrideNames = []string{
	"prov.override.yml",
	"prov.override.yaml",
	".prov.override.yml",
	".prov.override.yaml",
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads and parses a single configuration file. Defaults are applied
// and the result is validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := LoadFromBytes(data)
	if err != nil {
		if pe, ok := errors.As(err); ok {
			return nil, pe.WithDetail("path", path)
		}
		return nil, err
	}
	cfg.sources = []string{path}
	return cfg, nil
}

// LoadFromBytes parses configuration from YAML content.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parseYAML(data)
	if err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads the layered configuration for the current directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration with hierarchical merging starting from the
// given directory.
func LoadFrom(startDir string) (*Config, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return LoadFromWithLogger(startDir, logger)
}

// LoadFromWithLogger merges, lowest precedence first:
//  1. defaults
//  2. global config ($XDG_CONFIG_HOME/prov/prov.yml)
//  3. global TOML fragments ($XDG_CONFIG_HOME/prov/*.toml, by name)
//  4. project config (found by FindConfigFile)
//  5. local overrides next to the project config
//
// Every layer is optional. Layers that fail to parse are errors.
func LoadFromWithLogger(startDir string, logger logrus.FieldLogger) (*Config, error) {
	finalConfig := &Config{}
	var sources []string

	merge := func(path string, layer *Config) {
		logger.WithField("path", path).Debug("Merging configuration layer")
		finalConfig = mergeConfigs(finalConfig, layer)
		sources = append(sources, path)
	}

	globalDir := globalConfigDir()
	globalPath := ""
	if globalDir != "" {
		globalPath = filepath.Join(globalDir, FileName)
		if isFile(globalPath) {
			layer, err := loadLayer(globalPath)
			if err != nil {
				return nil, err
			}
			merge(globalPath, layer)
		}

		fragments, err := filepath.Glob(filepath.Join(globalDir, "*.toml"))
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to list config fragments")
		}
		sort.Strings(fragments)
		for _, path := range fragments {
			layer, err := loadTOMLLayer(path)
			if err != nil {
				return nil, err
			}
			merge(path, layer)
		}
	}

	projectPath, err := FindConfigFile(startDir)
	switch {
	case err == nil && projectPath != globalPath:
		layer, err := loadLayer(projectPath)
		if err != nil {
			return nil, err
		}
		merge(projectPath, layer)

		projectDir := filepath.Dir(projectPath)
		for _, name := range overrideNames {
			overridePath := filepath.Join(projectDir, name)
			if !isFile(overridePath) {
				continue
			}
			layer, err := loadLayer(overridePath)
			if err != nil {
				return nil, err
			}
			merge(overridePath, layer)
		}
	case err != nil && !errors.Is(err, errors.ErrCodeConfigNotFound):
		return nil, err
	case err != nil:
		logger.WithField("start_dir", startDir).Debug("No project configuration found, using defaults")
	}

	finalConfig.SetDefaults()
	if err := finalConfig.Validate(); err != nil {
		return nil, err
	}
	finalConfig.sources = sources

	if l, ok := logger.(*logrus.Logger); ok && l.IsLevelEnabled(logrus.DebugLevel) {
		if configData, err := yaml.Marshal(finalConfig); err == nil {
			logger.Debugf("Merged configuration:\n%s", string(configData))
		}
	}

	return finalConfig, nil
}

// FindConfigFile searches for prov configuration files with the following
// precedence:
//  1. Start directory up to the filesystem root
//  2. Git repository root (if in a git repo)
//  3. XDG config directory ($XDG_CONFIG_HOME/prov/prov.yml)
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if isFile(path) {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	if gitRoot, err := git.GetGitRoot(startDir); err == nil && gitRoot != "" {
		for _, name := range configNames {
			path := filepath.Join(gitRoot, name)
			if isFile(path) {
				return path, nil
			}
		}
	}

	if globalDir := globalConfigDir(); globalDir != "" {
		path := filepath.Join(globalDir, FileName)
		if isFile(path) {
			return path, nil
		}
	}

	return "", errors.ConfigNotFound(startDir).WithDetail("searchPath", startDir)
}

// GlobalConfigPath returns the path of the global prov.yml, whether or not
// it exists.
func GlobalConfigPath() string {
	dir := globalConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, FileName)
}

func globalConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appDirName)
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", appDirName)
	}

	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// loadLayer parses one YAML layer without defaults so unset keys do not
// shadow lower layers.
func loadLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}
	cfg, err := parseYAML(data)
	if err != nil {
		if pe, ok := errors.As(err); ok {
			return nil, pe.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// loadTOMLLayer reads a TOML fragment. The document is re-encoded as YAML
// so it passes through the same validation and extension capture.
func loadTOMLLayer(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config fragment").
			WithDetail("path", path)
	}

	var raw map[string]interface{}
	if err := toml.Unmarshal([]byte(expandEnvVars(string(data))), &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse TOML configuration").
			WithDetail("path", path)
	}

	converted, err := yaml.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to convert TOML configuration").
			WithDetail("path", path)
	}

	cfg, err := parseYAML(converted)
	if err != nil {
		if pe, ok := errors.As(err); ok {
			return nil, pe.WithDetail("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// parseYAML expands environment references, validates the raw document
// against the configuration schema and decodes it.
func parseYAML(data []byte) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var raw map[string]interface{}
	if err := yaml.Unmarshal(expanded, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
	}
	if raw == nil {
		return &Config{}, nil
	}

	// A bare `version: 1.0` decodes as a number.
	if v, ok := raw["version"]; ok && v != nil {
		if _, isString := v.(string); !isString {
			raw["version"] = fmt.Sprint(v)
		}
	}

	if err := Validator().Validate(raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "schema validation failed")
	}

	var cfg Config
	if err := yaml.Unmarshal(expanded, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse YAML configuration")
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		// Handle default values: ${VAR:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}
