package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewLoggerToWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithVideoID(WithComponent(NewLoggerTo(&buf, "info"), "segmenter"), "vid-1")
	logger.Debug("hidden")
	logger.Info("segmented", "shots", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "segmented", rec["msg"])
	assert.Equal(t, "segmenter", rec["component"])
	assert.Equal(t, "vid-1", rec["video_id"])
	assert.Equal(t, float64(3), rec["shots"])
}

func TestNewLoggerWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "visiond.log")
	logger, closer, err := NewLoggerWithFile("info", path)
	require.NoError(t, err)

	logger.Info("started", "port", 3012)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"started"`)
}

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "****", SanitizeToken("short"))
	assert.Equal(t, "abcd...wxyz", SanitizeToken("abcdefghijklmnopqrstuvwxyz"))
}

func TestSanitizePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Skip("no home directory")
	}
	got := SanitizePath(filepath.Join(home, "videos", "a.mp4"))
	assert.True(t, strings.HasPrefix(got, "~"), got)
	assert.Equal(t, "/tmp/x", SanitizePath("/tmp/x"))
}
