package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaults verifies the embedded example supplies sane defaults
func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.NotEmpty(t, cfg.Library.MusicRoot)
	assert.Equal(t, 300, cfg.Library.RescanIntervalSec)
	assert.Equal(t, "http://127.0.0.1:9091/transmission/rpc", cfg.Daemon.RPCURL)
	assert.Equal(t, 2, cfg.Daemon.PollIntervalSec)
	assert.Equal(t, 5, cfg.Daemon.RPCTimeoutSec)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Stats.DatabasePath)
}

// TestLoadFromFile verifies TOML values override the defaults
func TestLoadFromFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[library]
music_root = "/srv/music"
rescan_interval_seconds = 60

[daemon]
rpc_url = "http://localhost:9999/rpc"

[server]
port = 3000
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/music", cfg.Library.MusicRoot)
	assert.Equal(t, 60, cfg.Library.RescanIntervalSec)
	assert.Equal(t, "http://localhost:9999/rpc", cfg.Daemon.RPCURL)
	assert.Equal(t, 3000, cfg.Server.Port)
}

// TestLoadMissingFileUsesDefaults verifies a nonexistent path is not an
// error
func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
}

// TestLoadInvalidTOML verifies a malformed file surfaces a parse error
func TestLoadInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("library = {{{"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

// TestSavedSettingsSurviveRestart verifies a root saved through the
// settings API is picked up by a fresh Load, and that env vars still win
func TestSavedSettingsSurviveRestart(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	saved := []byte(`{"musicRoot": "/saved/music"}`)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".harmonia-settings.json"), saved, 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/saved/music", cfg.Library.MusicRoot)

	t.Setenv("HARMONIA_MUSIC_ROOT", "/env/music")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/music", cfg.Library.MusicRoot)
}

// TestSavedSettingsIgnoredWhenUnreadable verifies a corrupt settings file
// leaves the configured root untouched
func TestSavedSettingsIgnoredWhenUnreadable(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".harmonia-settings.json"), []byte("{not json"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Library.MusicRoot, cfg.Library.MusicRoot)
}

// TestEnvOverrides verifies environment variables beat file values
func TestEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("HARMONIA_MUSIC_ROOT", "/env/music")
	t.Setenv("HARMONIA_RPC_URL", "http://env:1234/rpc")
	t.Setenv("HARMONIA_DB_PATH", "/env/stats.db")
	t.Setenv("HARMONIA_PORT", "4567")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/env/music", cfg.Library.MusicRoot)
	assert.Equal(t, "http://env:1234/rpc", cfg.Daemon.RPCURL)
	assert.Equal(t, "/env/stats.db", cfg.Stats.DatabasePath)
	assert.Equal(t, 4567, cfg.Server.Port)
}

// TestCreateConfigFile verifies the example is written once and never
// overwritten
func TestCreateConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harmonia.toml")

	require.NoError(t, CreateConfigFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[library]")

	assert.Error(t, CreateConfigFile(path), "existing file must not be overwritten")
}
