package config

import (
	"os"
	"path/filepath"
)

const appName = "lsr-dashboard"

// EnvConfigPath names the environment variable that overrides the config path.
const EnvConfigPath = "LSR_DASHBOARD_CONFIG"

// XDGConfigHome returns $XDG_CONFIG_HOME, or ~/.config when it is unset.
func XDGConfigHome() string {
	return xdgHome("XDG_CONFIG_HOME", ".config")
}

// XDGDataHome returns $XDG_DATA_HOME, or ~/.local/share when it is unset.
func XDGDataHome() string {
	return xdgHome("XDG_DATA_HOME", ".local", "share")
}

// xdgHome resolves an XDG base directory from env, falling back to the
// fallback path under the user's home and then to the working directory.
func xdgHome(env string, fallback ...string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// DefaultConfigPath returns the TOML config path, honouring EnvConfigPath.
func DefaultConfigPath() string {
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}

// DefaultDBPath returns the default path for the saved views database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appName, "views.db")
}
