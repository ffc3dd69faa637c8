package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetWriter(&buf)
	SetFormat(FormatText)
	SetLevel("INFO")
	t.Cleanup(func() {
		SetWriter(os.Stdout)
		SetFormat(FormatText)
		SetLevel("INFO")
	})
	return &buf
}

func TestTextFormat(t *testing.T) {
	buf := resetLogger(t)

	Info("listening on port %d", 8080)

	line := buf.String()
	assert.Contains(t, line, "[INFO] listening on port 8080")
	assert.True(t, strings.HasPrefix(line, "["))
}

func TestLevelFiltering(t *testing.T) {
	buf := resetLogger(t)

	Debug("hidden")
	assert.Empty(t, buf.String())
	assert.False(t, Enabled(LevelDebug))

	SetLevel("debug")
	Debug("shown")
	assert.Contains(t, buf.String(), "[DEBUG] shown")

	buf.Reset()
	SetLevel("ERROR")
	Warn("hidden")
	Error("boom")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "[ERROR] boom")
}

func TestJSONFormat(t *testing.T) {
	buf := resetLogger(t)
	SetFormat(FormatJSON)

	Warn("disk %s almost full", "/data")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "disk /data almost full", record["msg"])
}

func TestStructured(t *testing.T) {
	buf := resetLogger(t)

	Structured().Info("request", "method", "GET", "status", 200)
	assert.Contains(t, buf.String(), "method=GET")
	assert.Contains(t, buf.String(), "status=200")
}

func TestSetOutputFile(t *testing.T) {
	resetLogger(t)
	path := filepath.Join(t.TempDir(), "fseditor.log")

	require.NoError(t, SetOutput(path))
	Info("to file")
	SetWriter(os.Stdout)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
