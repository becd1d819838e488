// Package config handles configuration loading and management for codeharness.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for codeharness.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	History   HistoryConfig   `mapstructure:"history"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

// APIConfig selects the code-generation backend and its sampling settings.
type APIConfig struct {
	Provider    string  `mapstructure:"provider"`
	Model       string  `mapstructure:"model"`
	Endpoint    string  `mapstructure:"endpoint"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`
	// RateLimit caps API requests per second. Zero means unlimited.
	RateLimit float64 `mapstructure:"rate_limit"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// RuntimeConfig controls how generated code is executed.
type RuntimeConfig struct {
	// Python is the interpreter used for Python tasks.
	Python string `mapstructure:"python"`
	// Timeout bounds loading the code and each function call.
	Timeout time.Duration `mapstructure:"timeout"`
}

// HistoryConfig controls the optional run history database.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// DBPath overrides the default database location.
	DBPath string `mapstructure:"db_path"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
type MetricsConfig struct {
	// Textfile is the output path. Empty disables metrics.
	Textfile string `mapstructure:"textfile"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (OPENAI_API_KEY, ANTHROPIC_API_KEY, CODEHARNESS_*)
// 2. Project config (.codeharness.yaml in current directory or parent)
// 3. User config (~/.config/codeharness/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
// Environment overrides apply as in Load.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CODEHARNESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider credentials keep their conventional names.
	v.BindEnv("openai.api_key", "OPENAI_API_KEY", "CODEHARNESS_OPENAI_API_KEY")
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", "CODEHARNESS_ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "AWS_REGION", "CODEHARNESS_ANTHROPIC_AWS_REGION")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.OpenAI.APIKey = expandEnv(cfg.OpenAI.APIKey)
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks enumerated and numeric settings.
func (c *Config) Validate() error {
	switch c.API.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("invalid api.provider %q: expected openai or anthropic", c.API.Provider)
	}
	switch c.API.Endpoint {
	case "completions", "chat":
	default:
		return fmt.Errorf("invalid api.endpoint %q: expected completions or chat", c.API.Endpoint)
	}
	if c.API.MaxTokens <= 0 {
		return fmt.Errorf("invalid api.max_tokens %d: must be positive", c.API.MaxTokens)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("invalid api.max_retries %d: must not be negative", c.API.MaxRetries)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("invalid api.rate_limit %v: must not be negative", c.API.RateLimit)
	}
	if c.API.Temperature < 0 || c.API.Temperature > 2 {
		return fmt.Errorf("invalid api.temperature %v: must be between 0 and 2", c.API.Temperature)
	}
	if c.Runtime.Timeout <= 0 {
		return fmt.Errorf("invalid runtime.timeout %v: must be positive", c.Runtime.Timeout)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q: expected text or json", c.Log.Format)
	}
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("api.provider", "openai")
	v.SetDefault("api.model", "")
	v.SetDefault("api.endpoint", "completions")
	v.SetDefault("api.max_tokens", 256)
	v.SetDefault("api.temperature", 0.0)
	v.SetDefault("api.max_retries", 0)
	v.SetDefault("api.rate_limit", 0.0)

	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("runtime.python", "python3")
	v.SetDefault("runtime.timeout", "30s")

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.db_path", "")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
}

// getUserConfigDir returns the XDG config directory for codeharness.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "codeharness")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "codeharness")
	}
	return filepath.Join(home, ".config", "codeharness")
}

// findProjectConfig searches for .codeharness.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".codeharness.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Provider:  "openai",
			Endpoint:  "completions",
			MaxTokens: 256,
		},
		Runtime: RuntimeConfig{
			Python:  "python3",
			Timeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}
