package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"", zerolog.InfoLevel},
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewFiltersConsoleByLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{Level: "warn", Console: &buf})

	log.Info().Msg("quiet")
	log.Warn().Msg("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestNewAppendsToFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_STATE_HOME", dir)
	t.Setenv("LOCALAPPDATA", dir)

	var buf bytes.Buffer
	log := New(Options{File: true, Console: &buf})
	log.Info().Int("rate", 96000).Msg("applied")

	data, err := os.ReadFile(Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rate":96000`)
	assert.Contains(t, string(data), `"message":"applied"`)
}

func TestNewFallsBackToConsole(t *testing.T) {
	dir := t.TempDir()
	// A file where the log directory should be makes MkdirAll fail.
	blocker := filepath.Join(dir, "state")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	t.Setenv("HOME", blocker)
	t.Setenv("XDG_STATE_HOME", blocker)
	t.Setenv("LOCALAPPDATA", blocker)

	var buf bytes.Buffer
	log := New(Options{File: true, Console: &buf})
	log.Info().Msg("still here")

	assert.Contains(t, buf.String(), "Logging to console only")
	assert.Contains(t, buf.String(), "still here")
}
