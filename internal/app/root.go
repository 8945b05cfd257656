package app

import (
	"io"

	"github.com/fredrik-eriksson/zsnapper/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbPath     string
	verbosity  int

	logCloser io.Closer

	// RootCmd is the root command for zsnapper
	RootCmd = &cobra.Command{
		Use:   "zsnapper",
		Short: "ZFS snapshot manager with GFS retention and replication",
		Long: `zsnapper takes timestamped ZFS snapshots, prunes them with a
grandfather-father-son retention policy and replicates them to a remote
receiver with zfs send/receive.

Snapshots are named <filesystem>@YYYY-MM-DD_HHMM. Snapshots with any other
name are never touched.

Configuration is read from $XDG_CONFIG_HOME/zsnapper/config.yaml (or the
file given with --config) and ZSNAPPER_* environment variables.

Examples:
  # Show managed snapshots
  zsnapper list

  # Preview what the retention policy would remove
  zsnapper prune --dry-run

  # Snapshot, replicate and prune on schedule in the background
  zsnapper run --daemon`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "run" && runDaemonChild {
				// The daemon child logs to its own file.
				return nil
			}
			closer, err := logging.Setup(logging.Options{Verbosity: verbosity, Console: true})
			if err != nil {
				return err
			}
			logCloser = closer
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
	}
)

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (default: $XDG_CONFIG_HOME/zsnapper/config.yaml)")
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "journal database path (default: $XDG_STATE_HOME/zsnapper/zsnapper.db)")
	RootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")

	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
