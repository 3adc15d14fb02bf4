package logging

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

func TestConsoleLevels(t *testing.T) {
	var buf bytes.Buffer
	Console(&buf, false).Info("hidden")
	Console(&buf, false).Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	Console(&buf, true).Debug("details")
	assert.Contains(t, buf.String(), "details")
}

func TestFileAppendsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "caffeine.log")

	for i := 0; i < 2; i++ {
		logger, closer, err := File(path, false, "component", "watcher")
		require.NoError(t, err)
		logger.Info("session expired", "id", "abc")
		require.NoError(t, closer.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "session expired", entry["msg"])
	assert.Equal(t, "watcher", entry["component"])
	assert.Equal(t, float64(os.Getpid()), entry["pid"])
}

func TestFileWithoutPath(t *testing.T) {
	logger, closer, err := File("", true)
	require.NoError(t, err)
	logger.Info("nowhere")
	assert.NoError(t, closer.Close())
}
