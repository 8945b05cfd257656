package zfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// writeScript creates an executable shell script in a temp directory.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

// recordingRunner captures requests and returns canned output.
type recordingRunner struct {
	out  []byte
	err  error
	reqs []Request
}

func (r *recordingRunner) Run(_ context.Context, req Request) ([]byte, error) {
	r.reqs = append(r.reqs, req)
	return r.out, r.err
}

func newTestClient(runner Runner, now time.Time) *Client {
	return New(runner, Options{
		Location: time.UTC,
		Now:      func() time.Time { return now },
	}, zerolog.Nop())
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation(TimeFormat, s, time.UTC)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", s, err)
	}
	return ts
}
