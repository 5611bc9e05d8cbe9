package logger

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, log.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, log.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, log.InfoLevel, ParseLevel("verbose"))
}

func TestConfigure_EnvFallback(t *testing.T) {
	t.Setenv("ADSDASH_LOG_LEVEL", "error")
	require.NoError(t, Configure("", "", false))
	assert.Equal(t, log.ErrorLevel, Logger.GetLevel())

	require.NoError(t, Configure("debug", "", false))
	assert.Equal(t, log.DebugLevel, Logger.GetLevel())
}

func TestConfigure_LogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "adsdash.log")
	require.NoError(t, Configure("info", path, false))
	assert.FileExists(t, path)
	require.NoError(t, Configure("info", "", false))
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Logger.SetLevel(log.DebugLevel)
	Request("GET", "/api/campaigns", 200)
	assert.Contains(t, buf.String(), "/api/campaigns")

	c := NewStyledLogger("Chat")
	c.Info("hello")
	assert.Contains(t, buf.String(), "hello")
}
