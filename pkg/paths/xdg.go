// Package paths provides XDG-compliant path resolution for Canopy.
//
// Resolution order:
// 1. CANOPY_HOME (portable root) → $CANOPY_HOME/{config,state,cache}
// 2. XDG env vars → $XDG_*_HOME/canopy
// 3. Platform defaults → ~/.config/canopy, ~/.local/state/canopy, etc.
package paths

import (
	"os"
	"path/filepath"
)

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if canopyHome := os.Getenv("CANOPY_HOME"); canopyHome != "" {
		return filepath.Join(canopyHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if canopyHome := os.Getenv("CANOPY_HOME"); canopyHome != "" {
		return filepath.Join(canopyHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// getCacheHome returns the base cache home directory.
func getCacheHome() string {
	if canopyHome := os.Getenv("CANOPY_HOME"); canopyHome != "" {
		return filepath.Join(canopyHome, "cache")
	}
	if xdgCacheHome := os.Getenv("XDG_CACHE_HOME"); xdgCacheHome != "" {
		return xdgCacheHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".cache")
	}
	return ""
}

// ConfigDir returns the Canopy configuration directory.
// Used for config files like canopy.yml.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "canopy")
}

// StateDir returns the Canopy state directory.
// Used for runtime state, pidfile and logs.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "canopy")
}

// CacheDir returns the Canopy cache directory.
func CacheDir() string {
	base := getCacheHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "canopy")
}

// LogDir returns the directory for daemon log files.
func LogDir() string {
	state := StateDir()
	if state == "" {
		return ""
	}
	return filepath.Join(state, "logs")
}

// PidFilePath returns the path to the canopyd PID file.
func PidFilePath() string {
	return filepath.Join(StateDir(), "canopyd.pid")
}

// DaemonLogPath returns the path to the canopyd log file.
func DaemonLogPath() string {
	return filepath.Join(LogDir(), "canopyd.log")
}

// EnsureDirs creates all Canopy directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		StateDir(),
		CacheDir(),
		LogDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
