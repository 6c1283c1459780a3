package main

import (
	"flag"
	"fmt"
	"os"

	"harmonia/cmd"
	"harmonia/config"

	"github.com/charmbracelet/log"
)

func main() {
	var (
		configPath string
		musicRoot  string
		port       int
		initConfig bool
		verbose    bool
	)

	flag.StringVar(&configPath, "config", "", "Path to config file (TOML)")
	flag.StringVar(&musicRoot, "music-root", "", "Music library folder (overrides config)")
	flag.IntVar(&port, "port", 0, "HTTP port (overrides config)")
	flag.BoolVar(&initConfig, "init-config", false, "Write an example config file and exit")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "harmonia",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if initConfig {
		path := configPath
		if path == "" {
			path = "harmonia.toml"
		}
		if err := config.CreateConfigFile(path); err != nil {
			logger.Fatal("failed to create config file", "error", err)
		}
		fmt.Printf("Wrote example config to %s\n", path)
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}
	if musicRoot != "" {
		cfg.Library.MusicRoot = musicRoot
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	// A missing music folder is recoverable: the library reports it and the
	// UI can point at a different folder through settings.
	if _, err := os.Stat(cfg.Library.MusicRoot); os.IsNotExist(err) {
		logger.Warn("music folder does not exist", "path", cfg.Library.MusicRoot)
	}

	if err := cmd.StartWebServer(cfg, logger); err != nil {
		logger.Fatal("server exited", "error", err)
	}
}
