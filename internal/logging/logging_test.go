package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/config"
)

func TestBuildJSONWritesToFileAndStderr(t *testing.T) {
	var stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "docqa.log")

	logger, closeFn, err := build(config.LogConfig{Level: "debug", Format: "json", File: path}, &stderr)
	require.NoError(t, err)
	logger.Debug("indexed source", "source_id", "a.pdf", "chunks", 3)
	require.NoError(t, closeFn())

	var rec map[string]any
	require.NoError(t, json.Unmarshal(stderr.Bytes(), &rec))
	assert.Equal(t, "indexed source", rec["msg"])
	assert.Equal(t, "a.pdf", rec["source_id"])

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stderr.String(), string(data))
}

func TestBuildTextRespectsLevel(t *testing.T) {
	var stderr bytes.Buffer
	logger, closeFn, err := build(config.LogConfig{Level: "warn"}, &stderr)
	require.NoError(t, err)
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("shown", "top_k", 4)
	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "msg=shown top_k=4")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	level, err = ParseLevel("ERROR")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestBuildRejectsUnknownFormat(t *testing.T) {
	_, _, err := build(config.LogConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
