// Package scheduler runs the snapshot, replicate and prune cycle for every
// configured filesystem on a cron schedule.
//
// The decision to take a snapshot is made from the live snapshot list on
// each tick; no scheduling state is persisted between runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/config"
	"github.com/fredrik-eriksson/zsnapper/internal/logging"
	"github.com/fredrik-eriksson/zsnapper/internal/metrics"
	"github.com/fredrik-eriksson/zsnapper/internal/prune"
	"github.com/fredrik-eriksson/zsnapper/internal/replicate"
	"github.com/fredrik-eriksson/zsnapper/internal/retention"
	"github.com/fredrik-eriksson/zsnapper/internal/store"
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Snapshotter lists and creates snapshots. *zfs.Client implements it.
type Snapshotter interface {
	Snapshots(ctx context.Context, fs string) ([]time.Time, error)
	Create(ctx context.Context, fs string) (time.Time, error)
}

// Pruner applies a retention policy. *prune.Pruner implements it.
type Pruner interface {
	Prune(ctx context.Context, fs string, policy retention.Policy, opts prune.Options) (*prune.Report, error)
}

// Syncer replicates a filesystem. *replicate.Syncer implements it.
type Syncer interface {
	Sync(ctx context.Context, fs string, target replicate.Target) (replicate.Plan, error)
}

// Recorder journals actions. *store.Recorder implements it.
type Recorder interface {
	Record(action store.Action, fs, snapshot string, err error)
}

// Tasks are the components a tick runs against.
type Tasks struct {
	Snapshots Snapshotter
	Pruner    Pruner
	Syncer    Syncer
	Recorder  Recorder
	Location  *time.Location
}

// Builder constructs the tasks for a configuration. It is called again on
// every reload so that changes to the zfs command or sudo settings apply.
type Builder func(cfg *config.Config) (*Tasks, error)

// Scheduler owns the cron loop.
type Scheduler struct {
	mu      sync.Mutex
	cfg     *config.Config
	tasks   *Tasks
	build   Builder
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger

	cron  *cron.Cron
	job   cron.Job
	entry cron.EntryID
}

// New creates a Scheduler for cfg. m may be nil.
func New(cfg *config.Config, build Builder, m *metrics.Metrics, log zerolog.Logger) (*Scheduler, error) {
	tasks, err := build(cfg)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		cfg:     cfg,
		tasks:   tasks,
		build:   build,
		metrics: m,
		now:     time.Now,
		log:     log,
	}, nil
}

// Due reports whether a filesystem whose newest snapshots are listed in
// snapshots needs a new one at now.
func Due(snapshots []time.Time, now time.Time, interval time.Duration) bool {
	if len(snapshots) == 0 {
		return true
	}
	newest := snapshots[0]
	for _, ts := range snapshots[1:] {
		if ts.After(newest) {
			newest = ts
		}
	}
	return now.Sub(newest) >= interval
}

// Tick runs one cycle over every configured filesystem. Failures of one
// filesystem are logged and do not stop the others; all of them are
// returned joined.
func (s *Scheduler) Tick(ctx context.Context) error {
	s.mu.Lock()
	cfg, tasks := s.cfg, s.tasks
	s.mu.Unlock()

	done := logging.LogOperationStart(s.log, "scheduled run")
	defer done()

	var errs []error
	for _, fs := range cfg.Filesystems {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.process(ctx, tasks, fs); err != nil {
			s.log.Error().Err(err).Str("filesystem", fs.Name).Msg("scheduled run failed")
			errs = append(errs, err)
		}
	}

	s.metrics.RunCompleted(s.now())
	return errors.Join(errs...)
}

func (s *Scheduler) process(ctx context.Context, t *Tasks, fs config.Filesystem) error {
	var errs []error

	if fs.SnapshotInterval > 0 {
		if err := s.snapshotIfDue(ctx, t, fs); err != nil {
			errs = append(errs, err)
		}
	}

	// Sync before pruning so the incremental base still exists locally.
	if fs.Replication.Enabled {
		target, err := fs.Replication.ReplicationTarget()
		if err != nil {
			errs = append(errs, err)
		} else if _, err := t.Syncer.Sync(ctx, fs.Name, target); err != nil {
			errs = append(errs, err)
		}
	}

	if fs.Retention.IsZero() {
		// An empty policy would remove every snapshot.
		s.log.Debug().Str("filesystem", fs.Name).Msg("no retention policy, skipping prune")
	} else {
		report, err := t.Pruner.Prune(ctx, fs.Name, fs.Retention, prune.Options{})
		switch {
		case err != nil:
			errs = append(errs, err)
		case report.Failed():
			errs = append(errs, fmt.Errorf("failed to remove %d snapshots of %s", len(report.Failures), fs.Name))
		}
	}

	return errors.Join(errs...)
}

func (s *Scheduler) snapshotIfDue(ctx context.Context, t *Tasks, fs config.Filesystem) error {
	live, err := t.Snapshots.Snapshots(ctx, fs.Name)
	if err != nil {
		return fmt.Errorf("failed to list snapshots of %s: %w", fs.Name, err)
	}
	if !Due(live, s.now(), fs.SnapshotInterval) {
		return nil
	}

	ts, err := t.Snapshots.Create(ctx, fs.Name)
	name := fs.Name
	if err == nil {
		name = zfs.FormatSnapshotName(fs.Name, ts.In(locationOf(t)))
		s.metrics.SnapshotCreated(fs.Name)
	}
	if t.Recorder != nil {
		t.Recorder.Record(store.ActionCreate, fs.Name, name, err)
	}
	if err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", fs.Name, err)
	}
	return nil
}

func locationOf(t *Tasks) *time.Location {
	if t.Location != nil {
		return t.Location
	}
	return time.Local
}

// Reload swaps in a new configuration. The running schedule is replaced
// when it changed.
func (s *Scheduler) Reload(cfg *config.Config) error {
	tasks, err := s.build(cfg)
	if err != nil {
		return fmt.Errorf("failed to apply configuration: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := cfg.Schedule != s.cfg.Schedule
	s.cfg, s.tasks = cfg, tasks

	if changed && s.cron != nil {
		sched, err := cron.ParseStandard(cfg.Schedule)
		if err != nil {
			return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
		}
		s.cron.Remove(s.entry)
		s.entry = s.cron.Schedule(sched, s.job)
		s.log.Info().Str("schedule", cfg.Schedule).Msg("schedule changed")
	}
	return nil
}

// Run ticks once immediately and then on the configured schedule until
// ctx is cancelled. A tick that is still running when the next one is due
// causes that one to be skipped.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	sched, err := cron.ParseStandard(s.cfg.Schedule)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid schedule %q: %w", s.cfg.Schedule, err)
	}

	logger := cronLogger{log: s.log}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger)))
	job := cron.NewChain(cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		_ = s.Tick(ctx)
	}))
	s.cron, s.job = c, job
	s.entry = c.Schedule(sched, job)
	schedule := s.cfg.Schedule
	s.mu.Unlock()

	s.log.Info().Str("schedule", schedule).Msg("scheduler started")
	job.Run()
	c.Start()

	<-ctx.Done()

	<-c.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Trace().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
