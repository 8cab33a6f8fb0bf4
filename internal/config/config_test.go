package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Defaults.Rounds)
	assert.Equal(t, 60, cfg.Defaults.TimeLimitSec)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9090"
dataset_path: "corpus/analyzed.csv"
room_defaults:
  rounds: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "corpus/analyzed.csv", cfg.DatasetPath)
	assert.Equal(t, 5, cfg.Defaults.Rounds)
	assert.Equal(t, 60, cfg.Defaults.TimeLimitSec, "unset keys keep their defaults")
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":7070")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	require.Error(t, err)
}

func TestRoomSettingsNormalizes(t *testing.T) {
	settings := RoomDefaults{Rounds: 0, MaxPlayers: 99}.RoomSettings()
	assert.Equal(t, 3, settings.Rounds)
	assert.Equal(t, 8, settings.MaxPlayers)
}
