package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// fakeZFS is a scratch directory holding a stand-in zfs binary. Every
// invocation is appended to log; list output comes from the snapshots and
// filesystems files.
type fakeZFS struct {
	dir    string
	binary string
	log    string
}

func newFakeZFS(t *testing.T, name string, filesystems, snapshots []string) *fakeZFS {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create fake zfs dir: %v", err)
	}

	f := &fakeZFS{dir: dir, binary: filepath.Join(dir, "zfs"), log: filepath.Join(dir, "calls.log")}
	f.write(t, "filesystems", filesystems)
	f.write(t, "snapshots", snapshots)

	script := fmt.Sprintf(`#!/bin/sh
echo "$*" >> %[1]s/calls.log
case "$1" in
list)
	if [ "$3" = "-t" ]; then cat %[1]s/snapshots; else cat %[1]s/filesystems; fi ;;
send)
	echo stream ;;
receive)
	cat > /dev/null ;;
esac
exit 0
`, dir)
	if err := os.WriteFile(f.binary, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake zfs: %v", err)
	}
	return f
}

func (f *fakeZFS) write(t *testing.T, name string, lines []string) {
	t.Helper()
	var body string
	for _, l := range lines {
		body += l + "\t-\t-\t-\t-\n"
	}
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

// calls returns the recorded invocations.
func (f *fakeZFS) calls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(f.log)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("failed to read call log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func (f *fakeZFS) called(t *testing.T, prefix string) bool {
	t.Helper()
	for _, c := range f.calls(t) {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

// writeConfig writes a YAML configuration and returns its path.
func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// resetFlags restores every package level flag variable between runs of
// RootCmd, which keeps flag state across Execute calls.
func resetFlags() {
	configPath, dbPath, verbosity = "", "", 0
	listFilesystems, listAll = false, false
	pruneDryRun = false
	sendFrom, sendMode, sendRemoteCommand, sendTarget = "", "", nil, ""
	historyFilesystem, historyRun, historyFailed, historyLimit, historyPurge, historySummary = "", "", false, 50, 0, false
	runDaemon, runDaemonChild, runStop, runOnce = false, false, false, false
	runPIDFile, runLogFile, runMetricsAddr = "", "", ""

	var visit func(c *cobra.Command)
	visit = func(c *cobra.Command) {
		c.Flags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		c.PersistentFlags().VisitAll(func(f *pflag.Flag) { f.Changed = false })
		for _, sub := range c.Commands() {
			visit(sub)
		}
	}
	visit(RootCmd)
}

// execute runs RootCmd with args and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Setenv("NO_COLOR", "1")

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})

	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}
