package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadWatchdogConfig reads and parses the daemon's YAML tuning
// configuration. A missing file falls back to DefaultWatchdogConfig
// rather than erroring, since the watchdog must still run with sane
// defaults the first time it's installed.
func LoadWatchdogConfig(path string) (WatchdogConfig, error) {
	cfg := DefaultWatchdogConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("watchdog config not found, using defaults", "path", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("config file access error at %s: %w", path, err)
	}

	slog.Debug("loading watchdog config", "path", path)
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// SetupLogging initializes the structured logging system based on the
// config's log_level string and installs it as the default logger.
func SetupLogging(cfg WatchdogConfig) {
	var level slog.Level

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	slog.Debug("Logging initialized", "level", level.String())
}
