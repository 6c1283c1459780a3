package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config is the application configuration, loaded from a TOML file with
// environment-variable overrides. It is injected into every component
// constructor; nothing reads it through package globals.
type Config struct {
	Library LibraryConfig `toml:"library"`
	Daemon  DaemonConfig  `toml:"daemon"`
	Server  ServerConfig  `toml:"server"`
	Stats   StatsConfig   `toml:"stats"`
}

// LibraryConfig controls the scanner.
type LibraryConfig struct {
	MusicRoot         string `toml:"music_root"`
	RescanIntervalSec int    `toml:"rescan_interval_seconds"`
}

// DaemonConfig controls the transfer daemon RPC client and the correlator.
type DaemonConfig struct {
	RPCURL          string `toml:"rpc_url"`
	PollIntervalSec int    `toml:"poll_interval_seconds"`
	RPCTimeoutSec   int    `toml:"rpc_timeout_seconds"`
}

// ServerConfig controls the HTTP command surface.
type ServerConfig struct {
	Port int `toml:"port"`
}

// StatsConfig controls the persisted stats store.
type StatsConfig struct {
	DatabasePath string `toml:"database_path"`
}

// Load reads a TOML config file and applies environment overrides. A
// missing file is not an error; defaults are used instead.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applySavedSettings(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// SettingsFilePath is where roots chosen through the settings API are
// persisted between runs.
func SettingsFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".harmonia-settings.json"
	}
	return filepath.Join(homeDir, ".harmonia-settings.json")
}

type savedSettings struct {
	MusicRoot string `json:"musicRoot"`
}

// applySavedSettings layers the settings file over the TOML config so a
// root chosen in the UI survives a restart. Env overrides still win.
func applySavedSettings(cfg *Config) {
	data, err := os.ReadFile(SettingsFilePath())
	if err != nil {
		return
	}
	var saved savedSettings
	if err := json.Unmarshal(data, &saved); err != nil {
		return
	}
	if saved.MusicRoot != "" {
		cfg.Library.MusicRoot = saved.MusicRoot
	}
}

// Default returns a Config populated from the embedded example file, with
// path defaults resolved against the user's home directory.
func Default() *Config {
	var cfg Config
	if err := toml.Unmarshal(exampleConf, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}

	if cfg.Library.MusicRoot == "" {
		cfg.Library.MusicRoot = defaultMusicRoot()
	}
	if cfg.Stats.DatabasePath == "" {
		cfg.Stats.DatabasePath = defaultDatabasePath()
	}
	return &cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HARMONIA_MUSIC_ROOT"); v != "" {
		cfg.Library.MusicRoot = v
	}
	if v := os.Getenv("HARMONIA_RPC_URL"); v != "" {
		cfg.Daemon.RPCURL = v
	}
	if v := os.Getenv("HARMONIA_DB_PATH"); v != "" {
		cfg.Stats.DatabasePath = v
	}
	if v := os.Getenv("HARMONIA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// defaultMusicRoot returns an OS-appropriate music folder.
func defaultMusicRoot() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "music")
	}
	return filepath.Join(homeDir, "Music", "Harmonia")
}

func defaultDatabasePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "harmonia.db")
	}
	return filepath.Join(homeDir, ".harmonia", "harmonia.db")
}

// CreateConfigFile writes the embedded example config to path, refusing to
// overwrite an existing file.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
