package git

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinimalEnv(t *testing.T) {
	host := map[string]string{
		"PATH":       "/usr/bin:/bin",
		"HOME":       "/home/someone",
		"LANG":       "de_DE.UTF-8",
		"GIT_DIR":    "/elsewhere/.git",
		"SYSTEMROOT": `C:\Windows`,
	}
	lookup := func(key string) (string, bool) {
		v, ok := host[key]
		return v, ok
	}

	env := MinimalEnv(lookup)

	assert.Equal(t, []string{
		"LANG=C",
		"LANGUAGE=C",
		"LC_ALL=C",
		"PATH=/usr/bin:/bin",
		`SYSTEMROOT=C:\Windows`,
	}, env)
}

func TestMinimalEnv_OmitsUnsetForwardedKeys(t *testing.T) {
	env := MinimalEnv(func(string) (string, bool) { return "", false })

	assert.Equal(t, []string{"LANG=C", "LANGUAGE=C", "LC_ALL=C"}, env)
}
