package git

import (
	"os"
	"sort"
)

// forwardedEnvKeys are the only variables inherited from the calling
// process when git is queried. SYSTEMROOT is required on Windows.
var forwardedEnvKeys = []string{"SYSTEMROOT", "PATH"}

// localeEnv forces a neutral locale so git output does not depend on the
// host's language settings. LANGUAGE is consulted on Windows.
var localeEnv = map[string]string{
	"LANGUAGE": "C",
	"LANG":     "C",
	"LC_ALL":   "C",
}

// MinimalEnv builds the environment passed to git. lookup is usually
// os.LookupEnv; entries are returned sorted by key.
func MinimalEnv(lookup func(string) (string, bool)) []string {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	vars := make(map[string]string, len(forwardedEnvKeys)+len(localeEnv))
	for _, key := range forwardedEnvKeys {
		if value, ok := lookup(key); ok {
			vars[key] = value
		}
	}
	for key, value := range localeEnv {
		vars[key] = value
	}

	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, key := range keys {
		env = append(env, key+"="+vars[key])
	}
	return env
}
