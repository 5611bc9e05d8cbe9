package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConfiguration builds a service over empty temp directories with no ADSDASH_*
// environment leaking in.
func newTestConfiguration(t *testing.T, opts ...ConfigOption) (*ConfigurationService, string, string) {
	t.Helper()
	for _, key := range []string{"API_BASE_URL", "API_HOST", "DATA_DIR", "LOG_LEVEL", "LOG_FILE", "THEME", "TIMEOUT", "PAGE_SIZE"} {
		t.Setenv(envPrefix+"_"+key, "")
		require.NoError(t, os.Unsetenv(envPrefix+"_"+key))
	}
	configDir := t.TempDir()
	workDir := t.TempDir()
	all := append([]ConfigOption{WithConfigDir(configDir), WithWorkDir(workDir)}, opts...)
	return NewConfigurationService(all...), configDir, workDir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func TestConfigurationService_Defaults(t *testing.T) {
	c, configDir, _ := newTestConfiguration(t)
	assert.Equal(t, "configuration", c.Name())
	require.NoError(t, c.Initialize())

	assert.Equal(t, DefaultAPIBaseURL, c.BaseURL())
	assert.Equal(t, configDir, c.DataDir())
	assert.Equal(t, 30*time.Second, c.Timeout())
	assert.Equal(t, 50, c.PageSize())
	assert.Equal(t, "default", c.Theme())
	assert.Equal(t, "info", c.LogLevel())
	assert.Empty(t, c.LogFile())

	paths := c.Paths()
	assert.False(t, paths.ConfigYAMLRead)
	assert.False(t, paths.ConfigEnvLoaded)
	assert.False(t, paths.LocalEnvLoaded)
}

func TestConfigurationService_BaseURL(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"base url wins", "api_base_url: https://ads.example.com/\napi_host: 10.0.0.5\n", "https://ads.example.com"},
		{"host gets backend port", "api_host: 10.0.0.5\n", "http://10.0.0.5:8000"},
		{"blank values fall back", "api_base_url: '  '\n", DefaultAPIBaseURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, configDir, _ := newTestConfiguration(t)
			writeFile(t, filepath.Join(configDir, "config.yaml"), tt.yaml)
			require.NoError(t, c.Initialize())
			assert.Equal(t, tt.want, c.BaseURL())
		})
	}
}

func TestConfigurationService_Layering(t *testing.T) {
	c, configDir, workDir := newTestConfiguration(t)
	writeFile(t, filepath.Join(configDir, "config.yaml"), "theme: dark\npage_size: 20\ntimeout: 5s\nlog_level: warn\n")
	writeFile(t, filepath.Join(configDir, ".env"), "ADSDASH_THEME=plain\nADSDASH_PAGE_SIZE=30\nOTHER_KEY=ignored\n")
	writeFile(t, filepath.Join(workDir, ".env"), "ADSDASH_PAGE_SIZE=40\n")
	t.Setenv("ADSDASH_LOG_LEVEL", "debug")

	require.NoError(t, c.Initialize())

	assert.Equal(t, "plain", c.Theme(), "config dir .env overrides config.yaml")
	assert.Equal(t, 40, c.PageSize(), "working dir .env overrides config dir .env")
	assert.Equal(t, "debug", c.LogLevel(), "environment overrides files")
	assert.Equal(t, 5*time.Second, c.Timeout())
	assert.NotContains(t, c.AllSettings(), "other_key")

	paths := c.Paths()
	assert.True(t, paths.ConfigYAMLRead)
	assert.True(t, paths.ConfigEnvLoaded)
	assert.True(t, paths.LocalEnvLoaded)
}

func TestConfigurationService_FlagsOnSharedViper(t *testing.T) {
	v := viper.New()
	c, _, _ := newTestConfiguration(t, WithViper(v))
	require.NoError(t, c.Initialize())

	v.Set(ConfigAPIBaseURL, "http://flag:9000")
	assert.Equal(t, "http://flag:9000", c.BaseURL())
	assert.Same(t, v, c.Viper())

	c.Set(ConfigPageSize, -3)
	assert.Equal(t, 50, c.PageSize(), "non-positive page size falls back")
}

func TestConfigurationService_BadYAML(t *testing.T) {
	c, configDir, _ := newTestConfiguration(t)
	writeFile(t, filepath.Join(configDir, "config.yaml"), "theme: [unclosed\n")
	assert.ErrorContains(t, c.Initialize(), "failed to parse")
}

func TestUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := userConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/tmp/xdg", "adsdash"), dir)
}
