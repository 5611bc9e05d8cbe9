package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"adsdash/internal/logger"
)

// Configuration keys.
const (
	ConfigAPIBaseURL = "api_base_url"
	ConfigAPIHost    = "api_host"
	ConfigDataDir    = "data_dir"
	ConfigLogLevel   = "log_level"
	ConfigLogFile    = "log_file"
	ConfigTheme      = "theme"
	ConfigTimeout    = "timeout"
	ConfigPageSize   = "page_size"
	ConfigPrompt     = "prompt"
)

// DefaultPrompt is the chat shell prompt. It may carry color markup.
const DefaultPrompt = "{{color:info}}adsdash{{/color}}> "

// envPrefix prefixes every environment variable adsdash reads.
const envPrefix = "ADSDASH"

// DefaultAPIBaseURL is used when neither a base URL nor a host is configured.
const DefaultAPIBaseURL = "http://localhost:8000"

// backendPort is the port the backend listens on when only its host is known.
const backendPort = "8000"

// ConfigPaths records which configuration files exist and were loaded.
type ConfigPaths struct {
	ConfigDir       string
	ConfigYAMLPath  string
	ConfigYAMLRead  bool
	ConfigEnvPath   string
	ConfigEnvLoaded bool
	LocalEnvPath    string
	LocalEnvLoaded  bool
}

// ConfigurationService layers adsdash settings. Priority, lowest to highest:
// defaults < config.yaml < config dir .env < working dir .env < ADSDASH_* environment < flags.
// Flags are bound by the CLI on the same viper instance.
type ConfigurationService struct {
	initialized bool
	v           *viper.Viper
	configDir   string
	workDir     string
	paths       ConfigPaths
}

// ConfigOption customizes a ConfigurationService.
type ConfigOption func(*ConfigurationService)

// WithViper uses v instead of a fresh viper instance, so flags bound on v take effect.
func WithViper(v *viper.Viper) ConfigOption {
	return func(c *ConfigurationService) { c.v = v }
}

// WithConfigDir overrides the configuration directory.
func WithConfigDir(dir string) ConfigOption {
	return func(c *ConfigurationService) { c.configDir = dir }
}

// WithWorkDir overrides the directory searched for a local .env.
func WithWorkDir(dir string) ConfigOption {
	return func(c *ConfigurationService) { c.workDir = dir }
}

// NewConfigurationService creates a new ConfigurationService instance.
func NewConfigurationService(opts ...ConfigOption) *ConfigurationService {
	c := &ConfigurationService{}
	for _, opt := range opts {
		opt(c)
	}
	if c.v == nil {
		c.v = viper.New()
	}
	return c
}

// Name returns the service name "configuration" for registration.
func (c *ConfigurationService) Name() string {
	return "configuration"
}

// Initialize loads every configuration source.
func (c *ConfigurationService) Initialize() error {
	if c.initialized {
		return nil
	}

	if c.configDir == "" {
		dir, err := userConfigDir()
		if err != nil {
			return err
		}
		c.configDir = dir
	}
	if c.workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		c.workDir = wd
	}
	c.paths = ConfigPaths{ConfigDir: c.configDir}

	c.v.SetDefault(ConfigAPIBaseURL, "")
	c.v.SetDefault(ConfigAPIHost, "")
	c.v.SetDefault(ConfigDataDir, c.configDir)
	c.v.SetDefault(ConfigLogLevel, "info")
	c.v.SetDefault(ConfigLogFile, "")
	c.v.SetDefault(ConfigTheme, "default")
	c.v.SetDefault(ConfigTimeout, 30*time.Second)
	c.v.SetDefault(ConfigPageSize, 50)
	c.v.SetDefault(ConfigPrompt, DefaultPrompt)

	if err := c.loadConfigYAML(); err != nil {
		return err
	}

	c.paths.ConfigEnvPath = filepath.Join(c.configDir, ".env")
	loaded, err := c.loadDotEnv(c.paths.ConfigEnvPath)
	if err != nil {
		return err
	}
	c.paths.ConfigEnvLoaded = loaded

	c.paths.LocalEnvPath = filepath.Join(c.workDir, ".env")
	loaded, err = c.loadDotEnv(c.paths.LocalEnvPath)
	if err != nil {
		return err
	}
	c.paths.LocalEnvLoaded = loaded

	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	c.initialized = true
	logger.Debug("Configuration loaded",
		"config_dir", c.configDir,
		"config_yaml", c.paths.ConfigYAMLRead,
		"config_env", c.paths.ConfigEnvLoaded,
		"local_env", c.paths.LocalEnvLoaded)
	return nil
}

// loadConfigYAML merges config.yaml from the config directory, if present.
func (c *ConfigurationService) loadConfigYAML() error {
	path := filepath.Join(c.configDir, "config.yaml")
	c.paths.ConfigYAMLPath = path

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	values := make(map[string]any)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := c.v.MergeConfigMap(values); err != nil {
		return fmt.Errorf("failed to merge %s: %w", path, err)
	}
	c.paths.ConfigYAMLRead = true
	return nil
}

// loadDotEnv merges the ADSDASH_* entries of a .env file. Missing files are not an error.
func (c *ConfigurationService) loadDotEnv(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read .env file %s: %w", path, err)
	}

	envMap, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return false, fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}

	values := make(map[string]any)
	for key, value := range envMap {
		if name, ok := strings.CutPrefix(key, envPrefix+"_"); ok {
			values[strings.ToLower(name)] = value
		}
	}
	if err := c.v.MergeConfigMap(values); err != nil {
		return false, fmt.Errorf("failed to merge .env file %s: %w", path, err)
	}
	return true, nil
}

// Viper exposes the underlying viper instance for flag binding.
func (c *ConfigurationService) Viper() *viper.Viper {
	return c.v
}

// Paths reports which files were read.
func (c *ConfigurationService) Paths() ConfigPaths {
	return c.paths
}

// GetString returns a configuration value.
func (c *ConfigurationService) GetString(key string) string {
	return c.v.GetString(key)
}

// Set overrides a value for the rest of the process.
func (c *ConfigurationService) Set(key string, value any) {
	c.v.Set(key, value)
}

// BaseURL returns the backend base URL: api_base_url when set, otherwise port 8000 on
// api_host, otherwise DefaultAPIBaseURL.
func (c *ConfigurationService) BaseURL() string {
	if base := strings.TrimSpace(c.v.GetString(ConfigAPIBaseURL)); base != "" {
		return strings.TrimRight(base, "/")
	}
	if host := strings.TrimSpace(c.v.GetString(ConfigAPIHost)); host != "" {
		return "http://" + host + ":" + backendPort
	}
	return DefaultAPIBaseURL
}

// DataDir returns the directory holding the local store.
func (c *ConfigurationService) DataDir() string {
	return c.v.GetString(ConfigDataDir)
}

// Timeout returns the timeout for non-streaming requests.
func (c *ConfigurationService) Timeout() time.Duration {
	d := c.v.GetDuration(ConfigTimeout)
	if d <= 0 {
		return 30 * time.Second
	}
	return d
}

// PageSize returns the incremental reveal page size.
func (c *ConfigurationService) PageSize() int {
	n := c.v.GetInt(ConfigPageSize)
	if n <= 0 {
		return 50
	}
	return n
}

// Prompt returns the chat shell prompt template.
func (c *ConfigurationService) Prompt() string {
	if p := c.v.GetString(ConfigPrompt); p != "" {
		return p
	}
	return DefaultPrompt
}

// Theme returns the configured theme name.
func (c *ConfigurationService) Theme() string {
	return c.v.GetString(ConfigTheme)
}

// LogLevel returns the configured log level.
func (c *ConfigurationService) LogLevel() string {
	return c.v.GetString(ConfigLogLevel)
}

// LogFile returns the configured log file.
func (c *ConfigurationService) LogFile() string {
	return c.v.GetString(ConfigLogFile)
}

// AllSettings returns every resolved setting, for `adsdash config`.
func (c *ConfigurationService) AllSettings() map[string]any {
	return c.v.AllSettings()
}

// userConfigDir returns $XDG_CONFIG_HOME/adsdash or ~/.config/adsdash.
func userConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, "adsdash"), nil
}

// GetGlobalConfigurationService returns the configuration service from the global registry.
func GetGlobalConfigurationService() (*ConfigurationService, error) {
	return Lookup[*ConfigurationService](GetGlobalRegistry(), "configuration")
}
