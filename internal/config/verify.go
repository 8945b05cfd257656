package config

import (
	"errors"
	"fmt"

	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
	"github.com/robfig/cron/v3"
)

// Verify checks the configuration for errors and returns all of them joined.
func (c *Config) Verify() error {
	var errs []error

	if len(c.ZFSCommand) == 0 || c.ZFSCommand[0] == "" {
		errs = append(errs, errors.New("zfs_command must not be empty"))
	}
	if c.Sudo.Enabled && c.Sudo.Command == "" {
		errs = append(errs, errors.New("sudo.command must be set when sudo is enabled"))
	}
	if c.CommandTimeout < 0 {
		errs = append(errs, fmt.Errorf("command_timeout must not be negative (got %s)", c.CommandTimeout))
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid schedule %q: %w", c.Schedule, err))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}

	seen := make(map[string]bool)
	for i, fs := range c.Filesystems {
		if fs.Name == "" {
			errs = append(errs, fmt.Errorf("filesystems[%d]: name must not be empty", i))
			continue
		}
		if seen[fs.Name] {
			errs = append(errs, fmt.Errorf("filesystem %s: configured more than once", fs.Name))
		}
		seen[fs.Name] = true

		if err := fs.verify(); err != nil {
			errs = append(errs, fmt.Errorf("filesystem %s: %w", fs.Name, err))
		}
	}

	return errors.Join(errs...)
}

func (fs Filesystem) verify() error {
	var errs []error

	if fs.SnapshotInterval < 0 {
		errs = append(errs, fmt.Errorf("snapshot_interval must not be negative (got %s)", fs.SnapshotInterval))
	}
	if err := fs.Retention.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("retention: %w", err))
	}

	r := fs.Replication
	if _, err := zfs.ParseMode(r.Mode); err != nil {
		errs = append(errs, fmt.Errorf("replication: %w", err))
	}
	if r.Enabled {
		if len(r.RemoteCommand) == 0 {
			errs = append(errs, errors.New("replication: remote_command must be set when replication is enabled"))
		}
		if r.Target == "" {
			errs = append(errs, errors.New("replication: target must be set when replication is enabled"))
		}
	}

	return errors.Join(errs...)
}
