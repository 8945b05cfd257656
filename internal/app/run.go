package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/config"
	"github.com/fredrik-eriksson/zsnapper/internal/logging"
	"github.com/fredrik-eriksson/zsnapper/internal/metrics"
	"github.com/fredrik-eriksson/zsnapper/internal/scheduler"
	"github.com/fredrik-eriksson/zsnapper/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	runDaemon      bool
	runDaemonChild bool
	runStop        bool
	runOnce        bool
	runPIDFile     string
	runLogFile     string
	runMetricsAddr string

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Snapshot, replicate and prune on a schedule",
		Long: `Run the snapshot cycle for every configured filesystem on the
configured cron schedule (default every minute).

On each tick, for each filesystem:
  1. take a snapshot when snapshot_interval has passed since the newest one
  2. replicate when replication is enabled
  3. prune with the retention policy

A tick that is still running when the next one is due causes that one to
be skipped. The configuration file is reloaded when it changes.

Run modes:
  • Foreground (default): Ctrl+C to stop
  • Daemon: background process with PID and log files
  • Stop: stop a running daemon
  • Once: a single tick, for use from an external scheduler`,
		Example: `  # Run in foreground with metrics
  zsnapper run --metrics-addr 127.0.0.1:9469

  # Run as background daemon
  zsnapper run --daemon

  # Stop running daemon
  zsnapper run --stop

  # Single tick from cron(8)
  zsnapper run --once`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
)

func init() {
	runCmd.Flags().BoolVar(&runDaemon, "daemon", false, "run as background daemon")
	runCmd.Flags().BoolVar(&runDaemonChild, "daemon-child", false, "internal flag for daemon child process")
	runCmd.Flags().BoolVar(&runStop, "stop", false, "stop running daemon")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single tick and exit")
	runCmd.Flags().StringVar(&runPIDFile, "pid-file", "", "PID file path (default: $XDG_STATE_HOME/zsnapper/zsnapper.pid)")
	runCmd.Flags().StringVar(&runLogFile, "log-file", "", "daemon log file (default: $XDG_STATE_HOME/zsnapper/zsnapper.log)")
	runCmd.Flags().StringVar(&runMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	runCmd.Flags().MarkHidden("daemon-child")
	runCmd.MarkFlagsMutuallyExclusive("daemon", "stop", "once")

	RootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if runPIDFile == "" {
		runPIDFile = config.DefaultPIDFile()
	}
	if runLogFile == "" {
		runLogFile = config.DefaultLogFile()
	}

	switch {
	case runStop:
		return stopDaemon(cmd)
	case runDaemon:
		return startDaemon(cmd)
	case runDaemonChild:
		return runDaemonProcess(cmd)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return runScheduler(ctx, cmd)
}

func stopDaemon(cmd *cobra.Command) error {
	running, err := scheduler.IsDaemonRunning(runPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if !running {
		fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
		return nil
	}

	if err := scheduler.StopDaemon(runPIDFile); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✓ Daemon stopped")
	return nil
}

func startDaemon(cmd *cobra.Command) error {
	// Fail in the foreground on a bad configuration.
	if _, err := loadConfig(); err != nil {
		return err
	}

	pid, err := scheduler.StartDaemon(daemonArgs(), runPIDFile, runLogFile)
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Daemon started (PID %d)\n", pid)
	fmt.Fprintf(out, "  PID file: %s\n", runPIDFile)
	fmt.Fprintf(out, "  Log file: %s\n", runLogFile)
	fmt.Fprintf(out, "\nTo stop: zsnapper run --stop\n")
	return nil
}

// daemonArgs is the command line of the daemon child.
func daemonArgs() []string {
	args := []string{"run", "--daemon-child", "--pid-file", runPIDFile, "--log-file", runLogFile}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if dbPath != "" {
		args = append(args, "--db", dbPath)
	}
	if runMetricsAddr != "" {
		args = append(args, "--metrics-addr", runMetricsAddr)
	}
	// The child logs at info level at least.
	args = append(args, "--verbose="+strconv.Itoa(max(verbosity, 1)))
	return args
}

func runDaemonProcess(cmd *cobra.Command) error {
	closer, err := logging.Setup(logging.Options{Verbosity: verbosity, File: runLogFile})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = runScheduler(ctx, cmd)
	if rmErr := scheduler.RemovePIDFile(runPIDFile); rmErr != nil {
		err = errors.Join(err, rmErr)
	}
	if err != nil {
		logger := logging.GetLogger("daemon")
		logger.Error().Err(err).Msg("daemon exited")
	}
	return err
}

func runScheduler(ctx context.Context, cmd *cobra.Command) error {
	log := logging.GetLogger("scheduler")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	path := journalPath(cfg)
	journal, err := store.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("journal unavailable, actions will not be recorded")
	} else {
		defer journal.Close()
	}
	rec := store.NewRecorder(journal, logging.GetLogger("journal"))

	m := metrics.New()
	s, err := scheduler.New(cfg, taskBuilder(rec, m), m, log)
	if err != nil {
		return err
	}

	if runOnce {
		if err := s.Tick(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Run %s completed\n", rec.RunID())
		return nil
	}

	log.Info().Str("run_id", rec.RunID()).Strs("filesystems", cfg.Names()).Msg("starting")

	if runMetricsAddr != "" {
		srv := serveMetrics(runMetricsAddr, m, log)
		defer shutdown(srv, log)
	}

	loader := newLoader()
	if watcher, err := config.NewWatcher(loader, logging.GetLogger("config")); err != nil {
		log.Warn().Err(err).Str("path", loader.Path()).Msg("configuration changes will not be picked up")
	} else {
		watcher.OnChange(func(cfg *config.Config) {
			if err := s.Reload(cfg); err != nil {
				log.Error().Err(err).Msg("failed to apply reloaded configuration")
			}
		})
		watcher.StartAsync()
		defer watcher.Stop()
	}

	if !runDaemonChild {
		fmt.Fprintf(cmd.OutOrStdout(), "Running on schedule %q (press Ctrl+C to stop)\n", cfg.Schedule)
	}

	return s.Run(ctx)
}

func serveMetrics(addr string, m *metrics.Metrics, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	return srv
}

func shutdown(srv *http.Server, log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown")
	}
}
