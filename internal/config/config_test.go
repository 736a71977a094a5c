package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/SeatVoice/internal/core"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "release", cfg.Mode)
	assert.Equal(t, core.DefaultGrid(), cfg.Room.Grid)
	assert.Equal(t, 10, cfg.Chat.RateLimit)
	assert.Equal(t, 10*time.Second, cfg.Chat.RateWindow)
	assert.Equal(t, zerolog.InfoLevel, cfg.Level())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := []byte(`
mode: debug
port: 9000
log_level: debug
room:
  grid:
    rows: 2
    cols: 3
    spacing: 30
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), yaml, 0o644))
	chdir(t, dir)
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("SEATVOICE_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Mode)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 2, cfg.Room.Grid.Rows)
	assert.Equal(t, 3, cfg.Room.Grid.Cols)
	assert.Equal(t, 30.0, cfg.Room.Grid.Spacing)
	assert.Equal(t, 20.0, cfg.Room.Grid.Origin.X)
	assert.Equal(t, zerolog.DebugLevel, cfg.Level())
}

func TestLoadRejectsEmptyGrid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.bad.yaml"), []byte("room:\n  grid:\n    rows: 0\n"), 0o644))
	chdir(t, dir)
	t.Setenv("CONFIG_ENV", "bad")

	_, err := Load()
	require.Error(t, err)
}
