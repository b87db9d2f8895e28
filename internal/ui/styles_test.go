package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoColorStyles_RenderPlainText(t *testing.T) {
	s := NoColorStyles()

	for _, style := range []interface{ Render(...string) string }{
		s.Header, s.Success, s.Warning, s.Error, s.Dim, s.Active, s.Label, s.Value, s.Border, s.Mark,
	} {
		assert.Equal(t, "text", style.Render("text"))
	}
}

func TestGetStyles_NoColorEnv(t *testing.T) {
	// Given: NO_COLOR is set
	t.Setenv("NO_COLOR", "1")

	// When: asking for colored styles
	s := GetStyles(false)

	// Then: styles are plain anyway
	assert.Equal(t, "x", s.Header.Render("x"))
}

func TestGetStyles_NoColorFlag(t *testing.T) {
	s := GetStyles(true)

	assert.Equal(t, "x", s.Success.Render("x"))
}

func TestDefaultStyles_ContainsText(t *testing.T) {
	s := DefaultStyles()

	assert.Contains(t, s.Header.Render("docindex"), "docindex")
	assert.Contains(t, s.Mark.Render("hit"), "hit")
}
