package services

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func TestMarkdownService_Name(t *testing.T) {
	assert.Equal(t, "markdown", NewMarkdownService("default").Name())
}

func TestMarkdownService_Render(t *testing.T) {
	service := NewMarkdownService("plain")

	_, err := service.Render("# Test")
	assert.ErrorContains(t, err, "not initialized")

	require.NoError(t, service.Initialize())

	out, err := service.Render("   ")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = service.Render("## Brand\n\n- ROAS **fell** to 1.2\n- CPA rose")
	require.NoError(t, err)
	text := stripANSI(out)
	assert.Contains(t, text, "Brand")
	assert.Contains(t, text, "fell")
	assert.Contains(t, text, "CPA rose")
	assert.NotContains(t, text, "**")
}

func TestMarkdownService_SetWordWrap(t *testing.T) {
	service := NewMarkdownService("plain")
	require.NoError(t, service.Initialize())

	assert.Error(t, service.SetWordWrap(0))
	require.NoError(t, service.SetWordWrap(20))
	assert.Equal(t, 20, service.width)

	out, err := service.Render(strings.Repeat("campaign ", 10))
	require.NoError(t, err)
	lines := 0
	for _, line := range strings.Split(stripANSI(out), "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	assert.Greater(t, lines, 1, "%q", out)
}

func TestGlamourStyle(t *testing.T) {
	assert.Equal(t, "dark", glamourStyle("dark"))
	assert.Equal(t, "notty", glamourStyle(" Plain "))
	assert.Equal(t, "auto", glamourStyle("default"))
	assert.Equal(t, "auto", glamourStyle(""))
}
