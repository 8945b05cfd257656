// Package prune applies a retention policy to the live snapshots of a
// filesystem.
package prune

import (
	"context"
	"fmt"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/metrics"
	"github.com/fredrik-eriksson/zsnapper/internal/retention"
	"github.com/fredrik-eriksson/zsnapper/internal/store"
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
	"github.com/rs/zerolog"
)

// SnapshotStore is the subset of *zfs.Client the pruner needs.
type SnapshotStore interface {
	Snapshots(ctx context.Context, fs string) ([]time.Time, error)
	Remove(ctx context.Context, fs string, ts time.Time) error
}

// Recorder journals actions. *store.Recorder implements it.
type Recorder interface {
	Record(action store.Action, fs, snapshot string, err error)
}

// Options controls a single Prune call.
type Options struct {
	// DryRun computes the plan without destroying anything.
	DryRun bool
	// Progress, when set, is called after each destroy attempt with the
	// number of attempts so far and the number planned.
	Progress func(done, total int)
}

// Failure is a snapshot that could not be destroyed.
type Failure struct {
	Snapshot time.Time
	Err      error
}

// Report describes what Prune decided and did.
type Report struct {
	Filesystem string
	DryRun     bool

	// Plan holds the retention decision for every live snapshot.
	Plan retention.Result

	Removed  []time.Time
	Failures []Failure
}

// Failed reports whether any removal failed.
func (r *Report) Failed() bool {
	return len(r.Failures) > 0
}

// Pruner removes the snapshots a policy does not keep.
type Pruner struct {
	snapshots SnapshotStore
	recorder  Recorder
	metrics   *metrics.Metrics
	location  *time.Location
	log       zerolog.Logger
}

// New creates a Pruner. recorder and m may be nil.
func New(snapshots SnapshotStore, recorder Recorder, m *metrics.Metrics, log zerolog.Logger) *Pruner {
	return &Pruner{
		snapshots: snapshots,
		recorder:  recorder,
		metrics:   m,
		location:  time.Local,
		log:       log,
	}
}

// WithLocation sets the zone used to render snapshot names in logs and the
// journal. It must match the zone of the zfs client.
func (p *Pruner) WithLocation(loc *time.Location) *Pruner {
	if loc != nil {
		p.location = loc
	}
	return p
}

// Prune lists the snapshots of fs, applies policy and destroys every
// snapshot not kept. A failed destroy is logged, journaled and reported but
// does not stop the remaining removals. Only a listing failure is returned
// as an error.
func (p *Pruner) Prune(ctx context.Context, fs string, policy retention.Policy, opts Options) (*Report, error) {
	live, err := p.snapshots.Snapshots(ctx, fs)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots of %s: %w", fs, err)
	}

	report := &Report{
		Filesystem: fs,
		DryRun:     opts.DryRun,
		Plan:       retention.Apply(live, policy),
	}

	p.log.Debug().
		Str("filesystem", fs).
		Int("live", len(live)).
		Int("keep", len(report.Plan.Keep)).
		Int("remove", len(report.Plan.Remove)).
		Bool("dry_run", opts.DryRun).
		Msg("retention computed")

	if opts.DryRun {
		return report, nil
	}

	total := len(report.Plan.Remove)
	for i, ts := range report.Plan.Remove {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		p.remove(ctx, report, ts)
		if opts.Progress != nil {
			opts.Progress(i+1, total)
		}
	}

	return report, nil
}

func (p *Pruner) remove(ctx context.Context, report *Report, ts time.Time) {
	fs := report.Filesystem
	name := zfs.FormatSnapshotName(fs, ts.In(p.location))
	err := p.snapshots.Remove(ctx, fs, ts)
	p.record(fs, name, err)

	if err != nil {
		p.log.Error().Err(err).Str("snapshot", name).Msg("failed to destroy snapshot")
		p.metrics.DestroyFailed(fs)
		report.Failures = append(report.Failures, Failure{Snapshot: ts, Err: err})
		return
	}

	p.metrics.SnapshotDestroyed(fs)
	report.Removed = append(report.Removed, ts)
}

func (p *Pruner) record(fs, name string, err error) {
	if p.recorder != nil {
		p.recorder.Record(store.ActionDestroy, fs, name, err)
	}
}
