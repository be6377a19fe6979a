// Package config provides XDG path helpers.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/verte-zerg/tiertrain/internal/model"
)

const appName = "tiertrain"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// XDGStateHome returns the XDG state home or a default fallback.
func XDGStateHome() string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "state")
}

// AppDataDir is the root for the database, content cache and user lists.
func AppDataDir() string {
	return filepath.Join(XDGDataHome(), appName)
}

// DefaultDBPath returns the default path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(AppDataDir(), "tiertrain.db")
}

// DefaultCacheRoot returns the content cache root.
func DefaultCacheRoot() string {
	return filepath.Join(AppDataDir(), "ContentCache")
}

// TierDir returns the cache directory for a tier under root.
func TierDir(root string, tier model.Tier) string {
	return filepath.Join(root, fmt.Sprintf("Tier_%d", int(tier)))
}

// DefaultCredentialsPath returns the OAuth credentials JSON path.
func DefaultCredentialsPath() string {
	return filepath.Join(AppDataDir(), "oauth.json")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(XDGStateHome(), appName, "tiertrain.log")
}
