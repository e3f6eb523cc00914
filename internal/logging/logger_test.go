package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WarnLevel, &buf)

	logger.Debug("quiet")
	logger.Info("quiet")
	logger.Warn("loud")
	logger.Error("loud")

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogLevel("shout"), &buf)

	logger.Debug("quiet")
	logger.Info("loud")

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "loud", lines[0]["message"])
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithField("folder_id", int64(7)).Info().Msg("one field")
	logger.WithFields(map[string]interface{}{"a": 1, "b": "two"}).Info().Msg("two fields")

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, float64(7), lines[0]["folder_id"])
	assert.Equal(t, float64(1), lines[1]["a"])
	assert.Equal(t, "two", lines[1]["b"])
}

func TestLogScanResult(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.LogScanResult("scan-1", 3, 5, 2, 1, true, "")
	logger.LogScanResult("scan-2", 3, 0, 0, 0, false, "cancelled")

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "scan-1", lines[0]["scan_id"])
	assert.Equal(t, float64(5), lines[0]["added"])
	assert.Equal(t, true, lines[0]["success"])

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "cancelled", lines[1]["error"])
}

func TestLogExtractionFailure(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.LogExtractionFailure("/music/bad.mp3", "CorruptFile", assert.AnError)

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "/music/bad.mp3", lines[0]["file_path"])
	assert.Equal(t, "CorruptFile", lines[0]["reason"])
}

func TestGlobalLogger(t *testing.T) {
	initialized := InitGlobalLogger(InfoLevel, "json")
	require.NotNil(t, initialized)
	assert.Same(t, initialized, GetGlobalLogger())
}
