package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/output"
	"github.com/fredrik-eriksson/zsnapper/internal/replicate"
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
	"github.com/spf13/cobra"
)

var (
	sendFrom          string
	sendMode          string
	sendRemoteCommand []string
	sendTarget        string

	sendCmd = &cobra.Command{
		Use:   "send <filesystem@YYYY-MM-DD_HHMM>",
		Short: "Send one snapshot to a remote receiver",
		Long: `Send a snapshot with zfs send piped into zfs receive on the remote side.

The remote command, target dataset and mode default to the filesystem's
replication settings and can be overridden with flags. With --from the
stream is incremental: mode "latest" sends only the difference between the
two snapshots (-i), mode "all" includes every intermediate snapshot (-I).`,
		Example: `  # Full send
  zsnapper send tank/home@2024-03-01_1200 --remote-command ssh,backup,zfs --target backup/home

  # Incremental from an earlier snapshot using configured settings
  zsnapper send tank/home@2024-03-02_1200 --from 2024-03-01_1200`,
		Args: cobra.ExactArgs(1),
		RunE: runSend,
	}
)

func init() {
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "incremental base snapshot (YYYY-MM-DD_HHMM)")
	sendCmd.Flags().StringVar(&sendMode, "mode", "", "incremental mode: all (-I) or latest (-i)")
	sendCmd.Flags().StringSliceVar(&sendRemoteCommand, "remote-command", nil, "receiving zfs invocation, comma separated (e.g. ssh,backup,zfs)")
	sendCmd.Flags().StringVar(&sendTarget, "target", "", "dataset to receive into")

	RootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	loc := e.location()
	fs, snapshot, err := parseSnapshotArg(args[0], loc)
	if err != nil {
		return err
	}

	var from time.Time
	if sendFrom != "" {
		if from, err = parseTimestamp(fs, sendFrom, loc); err != nil {
			return err
		}
	}

	target, err := sendTargetFor(e, fs)
	if err != nil {
		return err
	}

	spinner := output.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Sending %s to %s", args[0], target.Dataset))
	spinner.Start()
	err = e.syncer(nil).Send(cmd.Context(), fs, snapshot, from, target)
	spinner.Stop()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Sent %s to %s\n", zfs.FormatSnapshotName(fs, snapshot), target.Dataset)
	return nil
}

// sendTargetFor merges the filesystem's replication settings with the
// command line flags.
func sendTargetFor(e *env, fs string) (replicate.Target, error) {
	var target replicate.Target
	if cfg, err := e.cfg.Filesystem(fs); err == nil {
		// Configured settings are defaults even when replication is disabled.
		r := cfg.Replication
		if r.Mode == "" {
			r.Mode = string(zfs.ModeAll)
		}
		if target, err = r.ReplicationTarget(); err != nil {
			return target, err
		}
	}

	if sendMode != "" {
		mode, err := zfs.ParseMode(sendMode)
		if err != nil {
			return target, err
		}
		target.Mode = mode
	}
	if target.Mode == "" {
		target.Mode = zfs.ModeAll
	}
	if len(sendRemoteCommand) > 0 {
		target.RemoteCommand = sendRemoteCommand
	}
	if sendTarget != "" {
		target.Dataset = sendTarget
	}

	if len(target.RemoteCommand) == 0 {
		return target, errors.New("no remote command: configure replication or pass --remote-command")
	}
	if target.Dataset == "" {
		return target, errors.New("no target dataset: configure replication or pass --target")
	}
	return target, nil
}
