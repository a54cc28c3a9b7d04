package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.DebugLevel)

	log.Info("generation done",
		String("run_id", "r1"),
		Int("generation", 3),
		Float64("max_fitness", 12.5),
		Bool("settled", true),
		Duration("elapsed", 1500*time.Millisecond),
		Error(errors.New("disk full")),
	)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "generation done", entry["message"])
	assert.Equal(t, "r1", entry["run_id"])
	assert.Equal(t, 3.0, entry["generation"])
	assert.Equal(t, 12.5, entry["max_fitness"])
	assert.Equal(t, true, entry["settled"])
	assert.Equal(t, "disk full", entry["error"])
	assert.Contains(t, entry, "time")
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.WarnLevel)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Error("shown too")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "error", entries[1]["level"])
}

func TestWithStampsEveryEntry(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, zerolog.InfoLevel).With(String("run_id", "abc"), Int64("seed", 42))

	log.Info("one")
	log.Info("two", Any("stats", map[string]int{"trades": 4}))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, "abc", entry["run_id"])
		assert.Equal(t, 42.0, entry["seed"])
	}
	assert.Equal(t, map[string]any{"trades": 4.0}, entries[1]["stats"])
}

func TestNopDiscards(t *testing.T) {
	log := Nop().With(String("k", "v"))
	assert.NotPanics(t, func() {
		log.Info("nothing")
		log.Error("nothing", Error(errors.New("x")))
	})
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chartevo.log")
	log, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	log.Info("started", String("store", "memory"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	entry := map[string]any{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "memory", entry["store"])
}

func TestCloseReleasesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chartevo.log")
	log, err := New(Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	child := log.With(String("run_id", "r1"))

	child.Info("closing")
	require.NoError(t, child.Close(), "children do not own the file")
	require.NoError(t, log.Close())
	require.NoError(t, log.Close(), "second close is a no-op")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "closing")
}

func TestCloseWithoutFile(t *testing.T) {
	assert.NoError(t, Nop().Close())
	log, err := New(Config{Level: "info", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	assert.NoError(t, log.Close())
}
