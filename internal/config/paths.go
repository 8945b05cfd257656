// Package config loads and validates zsnapper's configuration.
package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "zsnapper"

// Dir returns the zsnapper config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/zsnapper.
func Dir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// StateDir returns the directory for the journal, PID file and daemon log,
// respecting XDG_STATE_HOME. Defaults to ~/.local/state/zsnapper.
func StateDir() string {
	return filepath.Join(xdg.StateHome, appName)
}

// DefaultFile returns the config file used when none is given.
func DefaultFile() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultDatabase returns the journal path used when none is configured.
func DefaultDatabase() string {
	return filepath.Join(StateDir(), appName+".db")
}

// DefaultPIDFile returns the PID file of the background daemon.
func DefaultPIDFile() string {
	return filepath.Join(StateDir(), appName+".pid")
}

// DefaultLogFile returns the log file of the background daemon.
func DefaultLogFile() string {
	return filepath.Join(StateDir(), appName+".log")
}
