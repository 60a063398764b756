package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/petems/rate-tray/internal/rate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.True(t, cfg.AutoSwitch)
	assert.Equal(t, DefaultDebounceMs, cfg.DebounceMs)
	assert.Equal(t, path, cfg.Path())
	assert.NotEmpty(t, cfg.LogSubsystems)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	cfg.AutoSwitch = false
	cfg.UseFixedFamilyRates = true
	cfg.Fixed44_1FamilyRate = int(rate.R176400)
	require.NoError(t, cfg.Save())

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.False(t, loaded.AutoSwitch)
	assert.True(t, loaded.UseFixedFamilyRates)
	assert.Equal(t, int(rate.R176400), loaded.Fixed44_1FamilyRate)
}

func TestLoadClampsDebounce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("debounce_ms: 5000\n"), 0644))
	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, MaxDebounceMs, cfg.DebounceMs)

	require.NoError(t, os.WriteFile(path, []byte("debounce_ms: 10\n"), 0644))
	cfg, err = LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, MinDebounceMs, cfg.DebounceMs)
}

func TestLoadRejectsNonCanonicalFixedRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fixed_48_family_rate: 32000\n"), 0644))

	_, err := LoadFrom(path)
	assert.ErrorContains(t, err, "fixed_48_family_rate")
}

func TestPolicy(t *testing.T) {
	cfg := Default()
	cfg.DebounceMs = 250
	cfg.UseFixedFamilyRates = true

	p := cfg.Policy()
	assert.Equal(t, 250*time.Millisecond, p.DebounceWindow)
	assert.True(t, p.UseFixedFamilyRates)
	assert.Equal(t, rate.R88200, p.Fixed44_1FamilyRate)
	assert.Equal(t, rate.R96000, p.Fixed48FamilyRate)
}
