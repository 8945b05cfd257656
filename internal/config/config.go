package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/replicate"
	"github.com/fredrik-eriksson/zsnapper/internal/retention"
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
)

// ErrUnknownFilesystem is returned when a filesystem is not configured.
var ErrUnknownFilesystem = errors.New("filesystem not configured")

// Config is the complete zsnapper configuration.
type Config struct {
	ZFSCommand     []string      `koanf:"zfs_command"`
	Sudo           Sudo          `koanf:"sudo"`
	CommandTimeout time.Duration `koanf:"command_timeout"`
	Schedule       string        `koanf:"schedule"`
	Database       string        `koanf:"database"`
	// Timezone names the zone snapshot names are written in. Empty means
	// the local zone.
	Timezone    string       `koanf:"timezone"`
	Filesystems []Filesystem `koanf:"filesystems"`
}

// Sudo configures privilege elevation for zfs invocations.
type Sudo struct {
	Enabled  bool   `koanf:"enabled"`
	Command  string `koanf:"command"`
	Password string `koanf:"password"`
}

// Filesystem is one managed dataset.
type Filesystem struct {
	Name string `koanf:"name"`
	// SnapshotInterval is the minimum age of the newest snapshot before the
	// scheduler takes a new one. Zero disables scheduled snapshots.
	SnapshotInterval time.Duration    `koanf:"snapshot_interval"`
	Retention        retention.Policy `koanf:"retention"`
	Replication      Replication      `koanf:"replication"`
}

// Replication configures sending a filesystem to a remote receiver.
type Replication struct {
	Enabled       bool     `koanf:"enabled"`
	RemoteCommand []string `koanf:"remote_command"`
	Target        string   `koanf:"target"`
	Mode          string   `koanf:"mode"`
	SendOpts      []string `koanf:"send_opts"`
	RecvOpts      []string `koanf:"recv_opts"`
}

// ReplicationTarget converts the replication settings for the syncer.
func (r Replication) ReplicationTarget() (replicate.Target, error) {
	mode, err := zfs.ParseMode(r.Mode)
	if err != nil {
		return replicate.Target{}, err
	}
	return replicate.Target{
		RemoteCommand: r.RemoteCommand,
		Dataset:       r.Target,
		Mode:          mode,
		SendOpts:      r.SendOpts,
		RecvOpts:      r.RecvOpts,
	}, nil
}

// Location returns the zone snapshot names are written in.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Filesystem returns the configuration of the named filesystem.
func (c *Config) Filesystem(name string) (*Filesystem, error) {
	for i := range c.Filesystems {
		if c.Filesystems[i].Name == name {
			return &c.Filesystems[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFilesystem, name)
}

// Names returns the configured filesystem names in configuration order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Filesystems))
	for _, fs := range c.Filesystems {
		names = append(names, fs.Name)
	}
	return names
}
