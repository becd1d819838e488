package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "AWS_REGION", "CODEHARNESS_API_PROVIDER", "CODEHARNESS_RUNTIME_TIMEOUT"} {
		t.Setenv(name, "")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.API.Provider != "openai" {
		t.Errorf("expected default provider 'openai', got %q", cfg.API.Provider)
	}
	if cfg.API.Endpoint != "completions" {
		t.Errorf("expected default endpoint 'completions', got %q", cfg.API.Endpoint)
	}
	if cfg.API.MaxTokens != 256 {
		t.Errorf("expected max tokens 256, got %d", cfg.API.MaxTokens)
	}
	if cfg.API.Temperature != 0 {
		t.Errorf("expected temperature 0, got %v", cfg.API.Temperature)
	}
	if cfg.API.MaxRetries != 0 {
		t.Errorf("expected no retries, got %d", cfg.API.MaxRetries)
	}
	if cfg.Runtime.Python != "python3" {
		t.Errorf("expected python3, got %q", cfg.Runtime.Python)
	}
	if cfg.Runtime.Timeout != 30*time.Second {
		t.Errorf("expected runtime timeout 30s, got %v", cfg.Runtime.Timeout)
	}
	if cfg.History.Enabled {
		t.Error("expected history to be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	clearKeyEnv(t)

	configPath := writeConfig(t, `
api:
  provider: anthropic
  model: claude-sonnet-4-20250514
  max_tokens: 512
  temperature: 0.2
  max_retries: 3
  rate_limit: 0.5
anthropic:
  api_key: sk-ant-file-key
  use_bedrock: true
  aws_region: us-west-2
runtime:
  python: /usr/bin/python3.12
  timeout: 5s
history:
  enabled: true
  db_path: /tmp/history.db
metrics:
  textfile: /tmp/codeharness.prom
log:
  level: debug
  format: json
`)

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.API.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic', got %q", cfg.API.Provider)
	}
	if cfg.API.Model != "claude-sonnet-4-20250514" {
		t.Errorf("unexpected model %q", cfg.API.Model)
	}
	if cfg.API.MaxTokens != 512 {
		t.Errorf("expected max tokens 512, got %d", cfg.API.MaxTokens)
	}
	if cfg.API.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", cfg.API.Temperature)
	}
	if cfg.API.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.API.MaxRetries)
	}
	if cfg.API.RateLimit != 0.5 {
		t.Errorf("expected rate limit 0.5, got %v", cfg.API.RateLimit)
	}
	if cfg.Metrics.Textfile != "/tmp/codeharness.prom" {
		t.Errorf("unexpected metrics textfile %q", cfg.Metrics.Textfile)
	}
	if cfg.API.Endpoint != "completions" {
		t.Errorf("expected default endpoint to survive, got %q", cfg.API.Endpoint)
	}
	if cfg.Anthropic.APIKey != "sk-ant-file-key" {
		t.Errorf("expected api_key from file, got %q", cfg.Anthropic.APIKey)
	}
	if !cfg.Anthropic.UseBedrock || cfg.Anthropic.AWSRegion != "us-west-2" {
		t.Errorf("unexpected bedrock settings: %+v", cfg.Anthropic)
	}
	if cfg.Runtime.Python != "/usr/bin/python3.12" {
		t.Errorf("unexpected python %q", cfg.Runtime.Python)
	}
	if cfg.Runtime.Timeout != 5*time.Second {
		t.Errorf("expected runtime timeout 5s, got %v", cfg.Runtime.Timeout)
	}
	if !cfg.History.Enabled || cfg.History.DBPath != "/tmp/history.db" {
		t.Errorf("unexpected history settings: %+v", cfg.History)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log settings: %+v", cfg.Log)
	}
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-env-openai-key")
	t.Setenv("CODEHARNESS_API_PROVIDER", "openai")
	t.Setenv("CODEHARNESS_RUNTIME_TIMEOUT", "2s")

	configPath := writeConfig(t, `
api:
  provider: anthropic
openai:
  api_key: sk-file-openai-key
`)

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.OpenAI.APIKey != "sk-env-openai-key" {
		t.Errorf("expected env key to win, got %q", cfg.OpenAI.APIKey)
	}
	if cfg.API.Provider != "openai" {
		t.Errorf("expected env provider to win, got %q", cfg.API.Provider)
	}
	if cfg.Runtime.Timeout != 2*time.Second {
		t.Errorf("expected env timeout 2s, got %v", cfg.Runtime.Timeout)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	clearKeyEnv(t)

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"provider", "api:\n  provider: cohere\n", "api.provider"},
		{"endpoint", "api:\n  endpoint: edits\n", "api.endpoint"},
		{"max tokens", "api:\n  max_tokens: 0\n", "api.max_tokens"},
		{"retries", "api:\n  max_retries: -1\n", "api.max_retries"},
		{"rate limit", "api:\n  rate_limit: -2\n", "api.rate_limit"},
		{"temperature", "api:\n  temperature: 3\n", "api.temperature"},
		{"timeout", "runtime:\n  timeout: 0s\n", "runtime.timeout"},
		{"log format", "log:\n  format: xml\n", "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromPath(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_ProjectConfig(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	project := t.TempDir()
	nested := filepath.Join(project, "sub", "dir")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(project, ".codeharness.yaml"), []byte("api:\n  max_retries: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(nested); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.MaxRetries != 2 {
		t.Errorf("expected project config to set max_retries 2, got %d", cfg.API.MaxRetries)
	}
	if cfg.API.Provider != "openai" {
		t.Errorf("expected default provider, got %q", cfg.API.Provider)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded-value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/codeharness"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
	if GetUserConfigPath() != "/custom/config/codeharness/config.yaml" {
		t.Errorf("unexpected user config path %q", GetUserConfigPath())
	}
}
