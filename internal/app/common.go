package app

import (
	"fmt"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/config"
	"github.com/fredrik-eriksson/zsnapper/internal/logging"
	"github.com/fredrik-eriksson/zsnapper/internal/metrics"
	"github.com/fredrik-eriksson/zsnapper/internal/prune"
	"github.com/fredrik-eriksson/zsnapper/internal/replicate"
	"github.com/fredrik-eriksson/zsnapper/internal/scheduler"
	"github.com/fredrik-eriksson/zsnapper/internal/store"
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
	"github.com/rs/zerolog"
)

// env bundles what a command needs: configuration, a zfs client and the
// action journal.
type env struct {
	cfg      *config.Config
	client   *zfs.Client
	journal  *store.Store
	recorder *store.Recorder
	log      zerolog.Logger
}

// newLoader returns the loader for the --config flag.
func newLoader() *config.Loader {
	return config.NewLoader(config.WithConfigFile(configPath))
}

func loadConfig() (*config.Config, error) {
	cfg, err := newLoader().Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// newClient builds a zfs client from the executor settings of cfg.
func newClient(cfg *config.Config, log zerolog.Logger) (*zfs.Client, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	executor := zfs.NewExecutor(cfg.ZFSCommand, cfg.Sudo.Command, cfg.CommandTimeout, log)
	return zfs.New(executor, zfs.Options{
		Elevate:  cfg.Sudo.Enabled,
		Password: cfg.Sudo.Password,
		Location: loc,
	}, log), nil
}

// journalPath resolves the database path: --db, then the configuration,
// then the XDG state directory.
func journalPath(cfg *config.Config) string {
	switch {
	case dbPath != "":
		return dbPath
	case cfg.Database != "":
		return cfg.Database
	default:
		return config.DefaultDatabase()
	}
}

// openEnv loads the configuration and builds the zfs client. When
// withJournal is set the journal is opened too; a journal that cannot be
// opened is logged and the command continues without it.
func openEnv(withJournal bool) (*env, error) {
	log := logging.GetLogger("app")

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client, err := newClient(cfg, logging.GetLogger("zfs"))
	if err != nil {
		return nil, err
	}

	e := &env{cfg: cfg, client: client, log: log}
	if !withJournal {
		return e, nil
	}

	path := journalPath(cfg)
	st, err := store.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("journal unavailable, actions will not be recorded")
	} else {
		e.journal = st
	}
	e.recorder = store.NewRecorder(e.journal, logging.GetLogger("journal"))
	return e, nil
}

// Close releases the journal.
func (e *env) Close() {
	if e.journal != nil {
		e.journal.Close()
	}
}

func (e *env) location() *time.Location {
	return e.client.Location()
}

// targets returns the configured filesystems named in args, or all of them
// when args is empty.
func (e *env) targets(args []string) ([]config.Filesystem, error) {
	if len(args) == 0 {
		return e.cfg.Filesystems, nil
	}
	out := make([]config.Filesystem, 0, len(args))
	for _, name := range args {
		fs, err := e.cfg.Filesystem(name)
		if err != nil {
			return nil, err
		}
		out = append(out, *fs)
	}
	return out, nil
}

func (e *env) pruner(m *metrics.Metrics) *prune.Pruner {
	return prune.New(e.client, e.recorder, m, logging.GetLogger("prune")).WithLocation(e.location())
}

func (e *env) syncer(m *metrics.Metrics) *replicate.Syncer {
	return replicate.New(e.client, remoteLister(e.client), e.recorder, m, logging.GetLogger("replicate")).WithLocation(e.location())
}

// remoteLister lists snapshots on the receiving side through its command.
func remoteLister(client *zfs.Client) replicate.RemoteFunc {
	return func(command []string) replicate.Lister {
		return client.Remote(command)
	}
}

// taskBuilder rebuilds the scheduler's components for each configuration
// it is given. The journal and metrics outlive reloads.
func taskBuilder(rec *store.Recorder, m *metrics.Metrics) scheduler.Builder {
	return func(cfg *config.Config) (*scheduler.Tasks, error) {
		client, err := newClient(cfg, logging.GetLogger("zfs"))
		if err != nil {
			return nil, err
		}
		loc := client.Location()
		return &scheduler.Tasks{
			Snapshots: client,
			Pruner:    prune.New(client, rec, m, logging.GetLogger("prune")).WithLocation(loc),
			Syncer:    replicate.New(client, remoteLister(client), rec, m, logging.GetLogger("replicate")).WithLocation(loc),
			Recorder:  rec,
			Location:  loc,
		}, nil
	}
}

// parseSnapshotArg splits "tank/home@2024-03-01_1200".
func parseSnapshotArg(arg string, loc *time.Location) (string, time.Time, error) {
	fs, ts, ok := zfs.ParseSnapshotName(arg, loc)
	if !ok {
		return "", time.Time{}, fmt.Errorf("invalid snapshot %q: expected <filesystem>@YYYY-MM-DD_HHMM", arg)
	}
	return fs, ts, nil
}

// parseTimestamp accepts either a bare YYYY-MM-DD_HHMM or a full snapshot
// name of fs.
func parseTimestamp(fs, value string, loc *time.Location) (time.Time, error) {
	if name, ts, ok := zfs.ParseSnapshotName(value, loc); ok {
		if name != fs {
			return time.Time{}, fmt.Errorf("snapshot %q does not belong to %s", value, fs)
		}
		return ts, nil
	}
	ts, err := time.ParseInLocation(zfs.TimeFormat, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: expected YYYY-MM-DD_HHMM", value)
	}
	return ts, nil
}
