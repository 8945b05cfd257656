package app

import (
	"errors"
	"fmt"

	"github.com/fredrik-eriksson/zsnapper/internal/output"
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [filesystem...]",
	Short: "Replicate the newest snapshot to the configured target",
	Long: `Bring each filesystem's replication target up to date.

The newest snapshot both sides have in common is used as the incremental
base; with no common snapshot a full stream is sent. Filesystems without
replication enabled are skipped.`,
	Example: `  zsnapper sync
  zsnapper sync tank/home`,
	RunE: runSync,
}

func init() {
	RootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	targets, err := e.targets(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	syncer := e.syncer(nil)

	var errs []error
	for _, fs := range targets {
		if !fs.Replication.Enabled {
			if len(args) > 0 {
				fmt.Fprintf(out, "%s: replication not enabled, skipping\n", fs.Name)
			}
			continue
		}
		target, err := fs.Replication.ReplicationTarget()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		spinner := output.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Replicating %s to %s", fs.Name, target.Dataset))
		spinner.Start()
		plan, err := syncer.Sync(cmd.Context(), fs.Name, target)
		spinner.Stop()
		if err != nil {
			errs = append(errs, err)
			continue
		}

		switch {
		case plan.NothingToSend:
			fmt.Fprintf(out, "%s: no snapshots to send\n", fs.Name)
		case plan.UpToDate:
			fmt.Fprintf(out, "%s: %s is up to date\n", fs.Name, target.Dataset)
		case plan.Full():
			fmt.Fprintf(out, "✓ Sent %s to %s (full)\n", zfs.FormatSnapshotName(fs.Name, plan.Snapshot.In(e.location())), target.Dataset)
		default:
			fmt.Fprintf(out, "✓ Sent %s to %s (from %s)\n",
				zfs.FormatSnapshotName(fs.Name, plan.Snapshot.In(e.location())), target.Dataset,
				plan.From.In(e.location()).Format(zfs.TimeFormat))
		}
	}
	return errors.Join(errs...)
}
