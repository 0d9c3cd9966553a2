package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "raw: %s", buf.String())
	return entry
}

func TestSetup_ReturnsJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelInfo)
	require.NotNil(t, l)

	l.Info("user registered",
		slog.String("user_id", "u-123"),
		slog.String("role", "customer"),
	)

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "user registered", entry["msg"])
	assert.Equal(t, "u-123", entry["user_id"])
	assert.Equal(t, "customer", entry["role"])
	assert.Equal(t, "adhira-auth", entry["service"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Contains(t, entry, "time")
}

func TestSetup_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(&buf, slog.LevelWarn)

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	l.Warn("kept")
	entry := decodeEntry(t, &buf)
	assert.Equal(t, "WARN", entry["level"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "ParseLevel(%q)", in)
	}
}

func TestSetupDefault_SetsGlobalLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	SetupDefault(&buf, slog.LevelInfo)

	slog.Default().Info("global test", slog.String("test_key", "test_val"))

	entry := decodeEntry(t, &buf)
	assert.Equal(t, "global test", entry["msg"])
	assert.Equal(t, "test_val", entry["test_key"])
}
