// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Server   ServerConfig   `toml:"server"`
	Realtime RealtimeConfig `toml:"realtime"`
	Storage  StorageConfig  `toml:"storage"`
	Log      LogConfig      `toml:"log"`
}

// ServerConfig maps the dashboard server settings.
type ServerConfig struct {
	Addr *string `toml:"addr"`
	Open *bool   `toml:"open"`
}

// RealtimeConfig maps the poller settings.
type RealtimeConfig struct {
	IntervalSeconds *int   `toml:"interval_seconds"`
	DefaultSeconds  *int64 `toml:"default_seconds"`
}

// StorageConfig maps file locations.
type StorageConfig struct {
	DBPath       *string `toml:"db_path"`
	SnapshotPath *string `toml:"snapshot_path"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	return cfg, nil
}

// DefaultTemplate is written by the config command.
const DefaultTemplate = `# lsr-dashboard configuration

[server]
# addr = ":8080"
# open = false

[realtime]
# interval_seconds = 60
# default_seconds = 86400

[storage]
# db_path = ""
# snapshot_path = "state.json"

[log]
# level = "info"
# format = "auto"
`
