package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// EnvVar returns the environment variable holding the key for provider.
func EnvVar(provider string) string {
	if provider == "anthropic" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func configuredKey(cfg *Config, provider string) string {
	if cfg == nil {
		return ""
	}
	key := cfg.OpenAI.APIKey
	if provider == "anthropic" {
		key = cfg.Anthropic.APIKey
	}
	key = os.ExpandEnv(key)
	if strings.HasPrefix(key, "${") {
		return ""
	}
	return key
}

// APIKey returns the API key for provider, or "" when none is set.
// It checks in order: environment variable, config file.
func APIKey(cfg *Config, provider string) string {
	if key := os.Getenv(EnvVar(provider)); key != "" {
		return key
	}
	return configuredKey(cfg, provider)
}

// ValidateAPIKey performs basic format validation on a provider key.
// It does not contact the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return errors.New("API key not set")
	}

	prefix := "sk-"
	if provider == "anthropic" {
		prefix = "sk-ant-"
	}
	if !strings.HasPrefix(key, prefix) {
		return fmt.Errorf("invalid API key format: expected %q prefix", prefix)
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}

	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the key for provider was sourced from.
func GetAPIKeySource(cfg *Config, provider string) KeySource {
	if os.Getenv(EnvVar(provider)) != "" {
		return KeySourceEnv
	}
	if configuredKey(cfg, provider) != "" {
		return KeySourceConfig
	}
	return KeySourceNone
}
