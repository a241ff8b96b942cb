package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"WARN", LevelWarn},
		{"unknown", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "unknown", Level(99).String())
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelDebug, FormatJSON)

	l.Info("table opened", "table", "uid_forward", "keys", 42)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "table opened", entry["msg"])
	assert.Equal(t, "uid_forward", entry["table"])
	assert.Equal(t, float64(42), entry["keys"])
	assert.Contains(t, entry, "ts")
}

func TestLoggerText(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelDebug, FormatText)

	l.Warn("torn record", "offset", 128)

	out := buf.String()
	assert.Contains(t, out, "level=warn")
	assert.Contains(t, out, `msg="torn record"`)
	assert.Contains(t, out, "offset=128")
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelWarn, FormatText)

	l.Debug("debug message")
	l.Info("info message")
	l.Warn("warn message")
	l.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestLoggerWithFieldsIsolation(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelDebug, FormatJSON)

	child := l.WithFields("index", "cn")

	l.Info("parent message")
	parent := decodeLine(t, &buf)
	assert.NotContains(t, parent, "index")

	buf.Reset()
	child.Info("child message")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "cn", entry["index"])
}

func TestLoggerAllLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelDebug, FormatJSON)

	tests := []struct {
		logFunc func(string, ...interface{})
		level   string
	}{
		{l.Debug, "debug"},
		{l.Info, "info"},
		{l.Warn, "warn"},
		{l.Error, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf.Reset()
			tt.logFunc("test message")
			assert.Equal(t, tt.level, decodeLine(t, &buf)["level"])
		})
	}
}

func TestNewLoggerFileOutput(t *testing.T) {
	path := t.TempDir() + "/store.log"
	l := New(Config{Level: "debug", Format: "text", Output: path})
	require.NotNil(t, l)
	l.Info("written to file")
}

func TestNopLogger(t *testing.T) {
	l := NewNop()
	l.Debug("test")
	l.Info("test")
	l.Warn("test")
	l.Error("test")
	assert.Same(t, l, l.WithFields("key", "value"))
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	var buf bytes.Buffer
	l := NewWithWriter(&buf, LevelInfo, FormatText)
	assert.Same(t, l, OrNop(l))
	OrNop(l).Info("kept")
	assert.True(t, strings.Contains(buf.String(), "kept"))
}
