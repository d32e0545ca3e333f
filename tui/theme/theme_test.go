package theme

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewThemeWithName(t *testing.T) {
	assert.Equal(t, "kanagawa", NewThemeWithName("Kanagawa").Name)
	assert.Equal(t, "terminal", NewThemeWithName(" terminal ").Name)
	assert.Equal(t, "kanagawa", NewThemeWithName("does-not-exist").Name)
}

func TestNoColorSelectsPlainTheme(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("PROV_THEME", "terminal")

	th := NewTheme()
	assert.Equal(t, "none", th.Name)
	assert.Equal(t, "text", th.Accent.Render("text"))
}

func TestRenderStatusUnknown(t *testing.T) {
	assert.Equal(t, "plain", RenderStatus("other", "plain"))
}
