package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/retention"
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
zfs_command: ["/usr/sbin/zfs"]
sudo:
  enabled: true
command_timeout: 30m
schedule: "*/5 * * * *"
timezone: UTC
filesystems:
  - name: tank/home
    snapshot_interval: 1h
    retention:
      yearly: 1
      monthly: 12
      weekly: 4
      daily: 7
      hourly: 24
      custom_interval: 6h
      custom: 4
    replication:
      enabled: true
      remote_command: ["ssh", "backup", "/sbin/zfs"]
      target: backup/tank/home
      mode: latest
      recv_opts: ["-F"]
  - name: tank/scratch
    retention:
      min15: 8
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/usr/sbin/zfs"}, cfg.ZFSCommand)
	assert.True(t, cfg.Sudo.Enabled)
	assert.Equal(t, zfs.DefaultSudo, cfg.Sudo.Command, "unset keys keep their defaults")
	assert.Equal(t, 30*time.Minute, cfg.CommandTimeout)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	require.Len(t, cfg.Filesystems, 2)
	home := cfg.Filesystems[0]
	assert.Equal(t, "tank/home", home.Name)
	assert.Equal(t, time.Hour, home.SnapshotInterval)
	assert.Equal(t, retention.Policy{
		Yearly: 1, Monthly: 12, Weekly: 4, Daily: 7, Hourly: 24,
		CustomInterval: 6 * time.Hour, Custom: 4,
	}, home.Retention)
	assert.True(t, home.Replication.Enabled)
	assert.Equal(t, []string{"ssh", "backup", "/sbin/zfs"}, home.Replication.RemoteCommand)
	assert.Equal(t, []string{"-F"}, home.Replication.RecvOpts)

	target, err := home.Replication.ReplicationTarget()
	require.NoError(t, err)
	assert.Equal(t, zfs.ModeLatest, target.Mode)
	assert.Equal(t, "backup/tank/home", target.Dataset)

	assert.Equal(t, 8, cfg.Filesystems[1].Retention.Min15)
	assert.Equal(t, []string{"tank/home", "tank/scratch"}, cfg.Names())
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
schedule = "@hourly"

[[filesystems]]
name = "tank"
snapshot_interval = "15m"

[filesystems.retention]
daily = 3
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "@hourly", cfg.Schedule)
	require.Len(t, cfg.Filesystems, 1)
	assert.Equal(t, 15*time.Minute, cfg.Filesystems[0].SnapshotInterval)
	assert.Equal(t, 3, cfg.Filesystems[0].Retention.Daily)
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	l := &Loader{envPrefix: DefaultEnvPrefix, filePath: filepath.Join(t.TempDir(), "config.yaml")}

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, Default().ZFSCommand, cfg.ZFSCommand)
	assert.Equal(t, DefaultSchedule, cfg.Schedule)
	assert.Empty(t, cfg.Filesystems)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, "config.yaml", sampleYAML)

	t.Setenv("ZSNAPPER_SUDO_PASSWORD", "hunter2")
	t.Setenv("ZSNAPPER_COMMAND_TIMEOUT", "2m")
	t.Setenv("ZSNAPPER_SCHEDULE", "@every 10m")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Sudo.Password)
	assert.Equal(t, 2*time.Minute, cfg.CommandTimeout)
	assert.Equal(t, "@every 10m", cfg.Schedule)
}

func TestLoadCustomEnvPrefix(t *testing.T) {
	t.Setenv("SNAPTEST_DATABASE", "/var/lib/zsnapper/journal.db")

	l := NewLoader(WithConfigFile(writeConfig(t, "c.yaml", "schedule: '@daily'\n")), WithEnvPrefix("SNAPTEST_"))
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/zsnapper/journal.db", cfg.Database)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad schedule",
			content: "schedule: every now and then\n",
			wantErr: "invalid schedule",
		},
		{
			name:    "duplicate filesystem",
			content: "filesystems:\n  - name: tank\n  - name: tank\n",
			wantErr: "configured more than once",
		},
		{
			name:    "negative count",
			content: "filesystems:\n  - name: tank\n    retention: {daily: -1}\n",
			wantErr: "daily count must not be negative",
		},
		{
			name:    "unknown mode",
			content: "filesystems:\n  - name: tank\n    replication: {mode: sometimes}\n",
			wantErr: "unknown replication mode",
		},
		{
			name:    "replication without target",
			content: "filesystems:\n  - name: tank\n    replication: {enabled: true, remote_command: [ssh, b, zfs]}\n",
			wantErr: "target must be set",
		},
		{
			name:    "empty name",
			content: "filesystems:\n  - snapshot_interval: 1h\n",
			wantErr: "name must not be empty",
		},
		{
			name:    "bad timezone",
			content: "timezone: Mars/Olympus_Mons\n",
			wantErr: "invalid timezone",
		},
		{
			name:    "malformed yaml",
			content: "filesystems: [\n",
			wantErr: "failed to load config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFilesystemLookup(t *testing.T) {
	cfg := &Config{Filesystems: []Filesystem{{Name: "tank"}, {Name: "tank/home"}}}

	fs, err := cfg.Filesystem("tank/home")
	require.NoError(t, err)
	assert.Equal(t, "tank/home", fs.Name)

	_, err = cfg.Filesystem("pool")
	assert.ErrorIs(t, err, ErrUnknownFilesystem)
}

func TestDefaultPaths(t *testing.T) {
	assert.Equal(t, "zsnapper", filepath.Base(Dir()))
	assert.Equal(t, "config.yaml", filepath.Base(DefaultFile()))
	assert.Equal(t, "zsnapper.db", filepath.Base(DefaultDatabase()))
	assert.Equal(t, StateDir(), filepath.Dir(DefaultPIDFile()))
	assert.Equal(t, StateDir(), filepath.Dir(DefaultLogFile()))
}
