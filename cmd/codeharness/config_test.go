package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/codeharness/internal/config"
)

func TestGetConfigValue(t *testing.T) {
	c := config.Default()
	c.API.Model = "gpt-4o"
	c.OpenAI.APIKey = "sk-abcdefghijklmnopqrstuvwxyz"

	v, err := getConfigValue(c, "api.model")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", v)

	v, err = getConfigValue(c, " API.Max_Tokens ")
	require.NoError(t, err)
	assert.Equal(t, "256", v)

	v, err = getConfigValue(c, "runtime.timeout")
	require.NoError(t, err)
	assert.Equal(t, "30s", v)

	v, err = getConfigValue(c, "openai.api_key")
	require.NoError(t, err)
	assert.Equal(t, "sk-abcd...wxyz", v)

	_, err = getConfigValue(c, "api.nope")
	assert.Error(t, err)
}

func TestPrintConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	c := config.Default()
	c.History.DBPath = "/tmp/h.db"

	var out bytes.Buffer
	printConfig(&out, c)

	got := out.String()
	assert.Contains(t, got, "api.provider")
	assert.Contains(t, got, "openai")
	assert.Contains(t, got, "/tmp/h.db")
	assert.Contains(t, got, "(not set)")
	assert.Contains(t, got, "openai key source: none")
	assert.NotContains(t, got, "sk-")
}

func TestPrintInterpreter_Missing(t *testing.T) {
	c := config.Default()
	c.Runtime.Python = "definitely-not-a-python-xyz"

	var out bytes.Buffer
	printInterpreter(context.Background(), &out, c)
	assert.Contains(t, out.String(), "python interpreter: unavailable")
}

func TestPrintConfig_MalformedKeyWarning(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-proj-abcdefghijklmnopqrstuvwxyz")

	c := config.Default()
	c.OpenAI.APIKey = "sk-abcdefghijklmnopqrstuvwxyz"

	var out bytes.Buffer
	printConfig(&out, c)

	got := out.String()
	assert.Contains(t, got, "openai key source: config_file")
	assert.Contains(t, got, "anthropic key source: environment")
	assert.Contains(t, got, `warning: anthropic key looks malformed: invalid API key format: expected "sk-ant-" prefix`)
	assert.NotContains(t, got, "warning: openai")
}
