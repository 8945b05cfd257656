package zfs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Mode selects how intermediate snapshots are handled by an incremental send.
type Mode string

const (
	// ModeAll sends every intermediate snapshot (-I).
	ModeAll Mode = "all"
	// ModeLatest sends only the delta between two snapshots (-i).
	ModeLatest Mode = "latest"
)

// ParseMode converts a configuration value to a Mode. An empty string
// selects ModeAll.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAll:
		return ModeAll, nil
	case ModeLatest:
		return ModeLatest, nil
	default:
		return "", fmt.Errorf("unknown replication mode %q (expected %q or %q)", s, ModeAll, ModeLatest)
	}
}

func (m Mode) flag() string {
	if m == ModeLatest {
		return "-i"
	}
	return "-I"
}

// SendRequest describes one replication of a local snapshot to a remote
// receiver.
type SendRequest struct {
	Filesystem string
	Snapshot   time.Time
	// From is the incremental base. The zero time requests a full send.
	From time.Time
	Mode Mode

	// RemoteCommand is the receiving side's invocation, e.g.
	// {"ssh", "backup", "/sbin/zfs"}.
	RemoteCommand []string
	Target        string

	SendOpts []string
	RecvOpts []string
}

// Incremental reports whether the request has an incremental base.
func (r SendRequest) Incremental() bool {
	return !r.From.IsZero()
}

// Validate checks that the request names everything needed to build both
// invocations.
func (r SendRequest) Validate() error {
	if r.Filesystem == "" {
		return errors.New("send request has no filesystem")
	}
	if r.Snapshot.IsZero() {
		return errors.New("send request has no snapshot")
	}
	if len(r.RemoteCommand) == 0 {
		return errors.New("send request has no remote command")
	}
	if r.Target == "" {
		return errors.New("send request has no target")
	}
	if r.Incremental() && !r.From.Before(r.Snapshot) {
		return fmt.Errorf("incremental base %s is not older than %s",
			r.From.Format(TimeFormat), r.Snapshot.Format(TimeFormat))
	}
	return nil
}

// sendArgs returns the producer arguments, relative to the zfs base command.
func (r SendRequest) sendArgs(loc *time.Location) []string {
	args := []string{"send"}
	args = append(args, r.SendOpts...)
	if r.Incremental() {
		args = append(args, r.Mode.flag(), FormatSnapshotName(r.Filesystem, r.From.In(loc)))
	}
	return append(args, FormatSnapshotName(r.Filesystem, r.Snapshot.In(loc)))
}

// receiveArgv returns the complete consumer argv.
func (r SendRequest) receiveArgv() []string {
	argv := append([]string(nil), r.RemoteCommand...)
	argv = append(argv, "receive")
	argv = append(argv, r.RecvOpts...)
	return append(argv, r.Target)
}

// Send streams the requested snapshot into the remote receiver. Failure of
// either side is returned as a *ToolError.
func (c *Client) Send(ctx context.Context, req SendRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	if _, err := c.run(ctx, req.sendArgs(c.location), req.receiveArgv()); err != nil {
		return err
	}

	event := c.log.Info().
		Str("snapshot", FormatSnapshotName(req.Filesystem, req.Snapshot.In(c.location))).
		Str("target", req.Target)
	if req.Incremental() {
		event = event.Str("from", req.From.In(c.location).Format(TimeFormat)).Str("mode", string(req.Mode))
	}
	event.Msg("snapshot sent")
	return nil
}
