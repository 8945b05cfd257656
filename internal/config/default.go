package config

import (
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
)

// DefaultSchedule is how often the daemon wakes up.
const DefaultSchedule = "@every 1m"

// Default returns the configuration used for keys that are not set.
func Default() *Config {
	return &Config{
		ZFSCommand: []string{zfs.DefaultBinary},
		Sudo: Sudo{
			Command: zfs.DefaultSudo,
		},
		Schedule: DefaultSchedule,
	}
}

// defaultMap is Default in the form koanf loads as its lowest layer.
func defaultMap() map[string]any {
	d := Default()
	return map[string]any{
		"zfs_command":     d.ZFSCommand,
		"sudo.enabled":    d.Sudo.Enabled,
		"sudo.command":    d.Sudo.Command,
		"sudo.password":   d.Sudo.Password,
		"command_timeout": "0s",
		"schedule":        d.Schedule,
		"database":        "",
		"timezone":        "",
	}
}
