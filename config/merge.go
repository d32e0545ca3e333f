package config

// mergeConfigs merges override configuration into base. Set fields in
// override win; extension maps are merged recursively.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}
	if override.CommandTimeout != "" {
		result.CommandTimeout = override.CommandTimeout
	}

	result.Environment = mergeEnvironment(result.Environment, override.Environment)

	if override.Revision.Dir != "" {
		result.Revision.Dir = override.Revision.Dir
	}
	if override.Sidecar.Suffix != "" {
		result.Sidecar.Suffix = override.Sidecar.Suffix
	}

	if override.Extensions != nil {
		merged := make(map[string]interface{}, len(result.Extensions)+len(override.Extensions))
		for key, value := range result.Extensions {
			merged[key] = value
		}
		for key, value := range override.Extensions {
			merged[key] = mergeValue(merged[key], value)
		}
		result.Extensions = merged
	}

	return &result
}

func mergeEnvironment(base, override EnvironmentConfig) EnvironmentConfig {
	result := base

	if override.NameVar != "" {
		result.NameVar = override.NameVar
	}
	if len(override.ExportCommand) > 0 {
		result.ExportCommand = override.ExportCommand
	}
	if override.Prefix != "" {
		result.Prefix = override.Prefix
	}
	if override.Suffix != "" {
		result.Suffix = override.Suffix
	}
	if len(override.Patterns) > 0 {
		result.Patterns = override.Patterns
	}

	return result
}

// mergeValue merges two extension values. Maps merge key by key, anything
// else is replaced.
func mergeValue(base, override interface{}) interface{} {
	baseMap, baseOk := base.(map[string]interface{})
	overrideMap, overrideOk := override.(map[string]interface{})
	if !baseOk || !overrideOk {
		return override
	}

	merged := make(map[string]interface{}, len(baseMap)+len(overrideMap))
	for k, v := range baseMap {
		merged[k] = v
	}
	for k, v := range overrideMap {
		merged[k] = mergeValue(merged[k], v)
	}
	return merged
}
