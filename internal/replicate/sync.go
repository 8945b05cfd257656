package replicate

import (
	"context"
	"fmt"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/metrics"
	"github.com/fredrik-eriksson/zsnapper/internal/store"
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
	"github.com/rs/zerolog"
)

// Lister lists the managed snapshots of one dataset.
type Lister interface {
	Snapshots(ctx context.Context, fs string) ([]time.Time, error)
}

// Source is the local side of a replication. *zfs.Client implements it.
type Source interface {
	Lister
	Send(ctx context.Context, req zfs.SendRequest) error
}

// RemoteFunc returns a Lister that runs through the remote command.
type RemoteFunc func(command []string) Lister

// Recorder journals actions. *store.Recorder implements it.
type Recorder interface {
	Record(action store.Action, fs, snapshot string, err error)
}

// Target describes where and how a filesystem is replicated.
type Target struct {
	RemoteCommand []string
	Dataset       string
	Mode          zfs.Mode
	SendOpts      []string
	RecvOpts      []string
}

// Syncer brings remote datasets up to date.
type Syncer struct {
	local    Source
	remote   RemoteFunc
	recorder Recorder
	metrics  *metrics.Metrics
	location *time.Location
	log      zerolog.Logger
}

// New creates a Syncer. recorder and m may be nil.
func New(local Source, remote RemoteFunc, recorder Recorder, m *metrics.Metrics, log zerolog.Logger) *Syncer {
	return &Syncer{
		local:    local,
		remote:   remote,
		recorder: recorder,
		metrics:  m,
		location: time.Local,
		log:      log,
	}
}

// WithLocation sets the zone used to render snapshot names.
func (s *Syncer) WithLocation(loc *time.Location) *Syncer {
	if loc != nil {
		s.location = loc
	}
	return s
}

// Sync sends the newest local snapshot of fs to target, incrementally from
// the newest snapshot both sides share, or in full when they share none.
func (s *Syncer) Sync(ctx context.Context, fs string, target Target) (Plan, error) {
	local, err := s.local.Snapshots(ctx, fs)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to list local snapshots of %s: %w", fs, err)
	}

	remote, err := s.remote(target.RemoteCommand).Snapshots(ctx, target.Dataset)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to list remote snapshots of %s: %w", target.Dataset, err)
	}

	plan := NewPlan(local, remote)
	switch {
	case plan.NothingToSend:
		s.log.Info().Str("filesystem", fs).Msg("no snapshots to replicate")
		return plan, nil
	case plan.UpToDate:
		s.log.Debug().Str("filesystem", fs).Str("target", target.Dataset).Msg("remote is up to date")
		return plan, nil
	}

	err = s.Send(ctx, fs, plan.Snapshot, plan.From, target)
	return plan, err
}

// Send replicates a single snapshot. A zero from requests a full send.
func (s *Syncer) Send(ctx context.Context, fs string, snapshot, from time.Time, target Target) error {
	req := zfs.SendRequest{
		Filesystem:    fs,
		Snapshot:      snapshot,
		From:          from,
		Mode:          target.Mode,
		RemoteCommand: target.RemoteCommand,
		Target:        target.Dataset,
		SendOpts:      target.SendOpts,
		RecvOpts:      target.RecvOpts,
	}

	err := s.local.Send(ctx, req)
	s.metrics.Sent(fs, err)
	if s.recorder != nil {
		s.recorder.Record(store.ActionSend, fs, zfs.FormatSnapshotName(fs, snapshot.In(s.location)), err)
	}
	if err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", zfs.FormatSnapshotName(fs, snapshot.In(s.location)), target.Dataset, err)
	}
	return nil
}
