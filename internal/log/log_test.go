package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelWarn},
		{"verbose", slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat("console"))
	assert.Equal(t, "json", FormatJSON.String())
	assert.Equal(t, "text", FormatText.String())
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})

	logger.Debug("hidden")
	logger.Info("task finished", "task", "add", "status", "passed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "task finished", rec["msg"])
	assert.Equal(t, "add", rec["task"])
	assert.Equal(t, "passed", rec["status"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: FormatText, Output: &buf})

	logger.Info("hidden")
	logger.Warn("retrying", "attempt", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=retrying")
	assert.Contains(t, out, "attempt=2")
}

func TestSetup_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup(Config{Level: slog.LevelDebug, Output: &buf})
	slog.Debug("from default")

	assert.Contains(t, buf.String(), "from default")
}
