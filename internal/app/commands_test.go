package app

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
)

var localSnapshots = []string{
	"tank@2024-01-02_0000",
	"tank@2024-01-01_0010",
	"tank@2024-01-01_0000",
	"tank@manual-backup",
	"scratch@2024-01-01_0000",
}

// setup creates a fake local zfs, a fake remote receiver and a
// configuration managing tank with daily:2 retention.
func setup(t *testing.T) (local, remote *fakeZFS, cfg string) {
	t.Helper()
	local = newFakeZFS(t, "local", []string{"tank", "scratch"}, localSnapshots)
	remote = newFakeZFS(t, "remote", []string{"backup/tank"}, []string{"backup/tank@2024-01-01_0000"})

	cfg = writeConfig(t, fmt.Sprintf(`
zfs_command: [%q]
timezone: UTC
database: %q
filesystems:
  - name: tank
    snapshot_interval: 1h
    retention:
      daily: 2
    replication:
      enabled: true
      remote_command: [%q]
      target: backup/tank
      recv_opts: ["-F"]
`, local.binary, filepath.Join(t.TempDir(), "journal.db"), remote.binary))
	return local, remote, cfg
}

func TestListCommand(t *testing.T) {
	_, _, cfg := setup(t)

	out, err := execute(t, "--config", cfg, "list")
	if err != nil {
		t.Fatalf("list failed: %v\n%s", err, out)
	}
	for _, want := range []string{"tank@2024-01-02_0000", "tank@2024-01-01_0010", "tank@2024-01-01_0000"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "manual-backup") {
		t.Error("list should ignore snapshots that do not follow the naming scheme")
	}
	if strings.Contains(out, "scratch@") {
		t.Error("list should only show configured filesystems by default")
	}

	out, err = execute(t, "--config", cfg, "list", "--all")
	if err != nil {
		t.Fatalf("list --all failed: %v", err)
	}
	if !strings.Contains(out, "scratch@2024-01-01_0000") {
		t.Errorf("list --all output missing scratch:\n%s", out)
	}
}

func TestListFilesystems(t *testing.T) {
	_, _, cfg := setup(t)

	out, err := execute(t, "--config", cfg, "list", "--filesystems", "--all")
	if err != nil {
		t.Fatalf("list --filesystems failed: %v", err)
	}
	if !strings.Contains(out, "tank") || !strings.Contains(out, "scratch") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestPruneDryRun(t *testing.T) {
	local, _, cfg := setup(t)

	out, err := execute(t, "--config", cfg, "prune", "--dry-run")
	if err != nil {
		t.Fatalf("prune --dry-run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "tank@2024-01-01_0010") || !strings.Contains(out, "remove") {
		t.Errorf("dry run should show the snapshot to remove:\n%s", out)
	}
	if local.called(t, "destroy") {
		t.Error("dry run must not destroy snapshots")
	}
}

func TestPruneAndHistory(t *testing.T) {
	local, _, cfg := setup(t)

	out, err := execute(t, "--config", cfg, "prune", "tank")
	if err != nil {
		t.Fatalf("prune failed: %v\n%s", err, out)
	}
	if !local.called(t, "destroy tank@2024-01-01_0010") {
		t.Errorf("expected destroy of tank@2024-01-01_0010, calls: %v", local.calls(t))
	}
	for _, c := range local.calls(t) {
		if strings.HasPrefix(c, "destroy") && c != "destroy tank@2024-01-01_0010" {
			t.Errorf("unexpected destroy: %s", c)
		}
	}
	if !strings.Contains(out, "removed 1 snapshots, kept 2") {
		t.Errorf("unexpected summary:\n%s", out)
	}

	out, err = execute(t, "--config", cfg, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, "destroy") || !strings.Contains(out, "tank@2024-01-01_0010") {
		t.Errorf("history should show the destroy:\n%s", out)
	}

	out, err = execute(t, "--config", cfg, "history", "--summary")
	if err != nil {
		t.Fatalf("history --summary failed: %v", err)
	}
	if !strings.Contains(out, "destroy") || !strings.Contains(out, "1") {
		t.Errorf("unexpected summary:\n%s", out)
	}
}

func TestPruneUnknownFilesystem(t *testing.T) {
	_, _, cfg := setup(t)

	if _, err := execute(t, "--config", cfg, "prune", "pool/missing"); err == nil {
		t.Error("expected an error for an unconfigured filesystem")
	}
}

func TestSnapshotCommand(t *testing.T) {
	local, _, cfg := setup(t)

	out, err := execute(t, "--config", cfg, "snapshot")
	if err != nil {
		t.Fatalf("snapshot failed: %v\n%s", err, out)
	}
	if !local.called(t, "snapshot tank@") {
		t.Errorf("expected a snapshot call, got %v", local.calls(t))
	}
	if !strings.Contains(out, "Created tank@") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestDestroyCommand(t *testing.T) {
	local, _, cfg := setup(t)

	if _, err := execute(t, "--config", cfg, "destroy", "tank@2024-01-01_0000", "tank@manual-backup"); err == nil {
		t.Error("expected an error for a snapshot outside the naming scheme")
	}
	if local.called(t, "destroy") {
		t.Error("nothing should be destroyed when any argument is invalid")
	}

	out, err := execute(t, "--config", cfg, "destroy", "tank@2024-01-01_0000")
	if err != nil {
		t.Fatalf("destroy failed: %v\n%s", err, out)
	}
	if !local.called(t, "destroy tank@2024-01-01_0000") {
		t.Errorf("expected destroy call, got %v", local.calls(t))
	}
}

func TestSyncCommand(t *testing.T) {
	local, remote, cfg := setup(t)

	out, err := execute(t, "--config", cfg, "sync")
	if err != nil {
		t.Fatalf("sync failed: %v\n%s", err, out)
	}

	if !local.called(t, "send -I tank@2024-01-01_0000 tank@2024-01-02_0000") {
		t.Errorf("expected incremental send, calls: %v", local.calls(t))
	}
	if !remote.called(t, "receive -F backup/tank") {
		t.Errorf("expected receive on the remote, calls: %v", remote.calls(t))
	}
	if !strings.Contains(out, "from 2024-01-01_0000") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestSendCommand(t *testing.T) {
	local, remote, cfg := setup(t)

	out, err := execute(t, "--config", cfg, "send", "tank@2024-01-02_0000", "--from", "2024-01-01_0010", "--mode", "latest", "--target", "backup/other")
	if err != nil {
		t.Fatalf("send failed: %v\n%s", err, out)
	}
	if !local.called(t, "send -i tank@2024-01-01_0010 tank@2024-01-02_0000") {
		t.Errorf("expected -i send, calls: %v", local.calls(t))
	}
	if !remote.called(t, "receive -F backup/other") {
		t.Errorf("expected receive into backup/other, calls: %v", remote.calls(t))
	}
}

func TestSendRequiresTarget(t *testing.T) {
	local := newFakeZFS(t, "local", []string{"pool"}, nil)
	cfg := writeConfig(t, fmt.Sprintf("zfs_command: [%q]\ndatabase: %q\n", local.binary, filepath.Join(t.TempDir(), "j.db")))

	_, err := execute(t, "--config", cfg, "send", "pool@2024-01-01_0000")
	if err == nil || !strings.Contains(err.Error(), "remote command") {
		t.Errorf("expected a missing remote command error, got %v", err)
	}
}

func TestRunOnce(t *testing.T) {
	local, remote, cfg := setup(t)

	out, err := execute(t, "--config", cfg, "run", "--once")
	if err != nil {
		t.Fatalf("run --once failed: %v\n%s", err, out)
	}

	// The newest snapshot is from 2024, so a new one is due.
	if !local.called(t, "snapshot tank@") {
		t.Errorf("expected a snapshot, calls: %v", local.calls(t))
	}
	if !local.called(t, "destroy tank@2024-01-01_0010") {
		t.Errorf("expected pruning, calls: %v", local.calls(t))
	}
	if !remote.called(t, "receive -F backup/tank") {
		t.Errorf("expected replication, calls: %v", remote.calls(t))
	}
	if !strings.Contains(out, "completed") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRunStopWithoutDaemon(t *testing.T) {
	_, _, cfg := setup(t)
	pid := filepath.Join(t.TempDir(), "zsnapper.pid")

	out, err := execute(t, "--config", cfg, "run", "--stop", "--pid-file", pid)
	if err != nil {
		t.Fatalf("run --stop failed: %v", err)
	}
	if !strings.Contains(out, "not running") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := writeConfig(t, "filesystems:\n  - name: tank\n    retention:\n      daily: -1\n")

	if _, err := execute(t, "--config", cfg, "list"); err == nil {
		t.Error("expected an error for an invalid configuration")
	}
}
