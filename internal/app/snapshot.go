package app

import (
	"errors"
	"fmt"

	"github.com/fredrik-eriksson/zsnapper/internal/store"
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot [filesystem...]",
	Short: "Create a snapshot now",
	Long: `Create a snapshot named <filesystem>@YYYY-MM-DD_HHMM for each given
filesystem, or for every configured filesystem when none is given.

The timestamp is the current time truncated to the minute. Creating a
second snapshot of the same filesystem within one minute fails.`,
	Example: `  zsnapper snapshot
  zsnapper snapshot tank/home tank/var`,
	RunE: runSnapshot,
}

func init() {
	RootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	names := args
	if len(names) == 0 {
		names = e.cfg.Names()
	}
	if len(names) == 0 {
		return errors.New("no filesystems configured and none given")
	}

	out := cmd.OutOrStdout()
	var errs []error
	for _, fs := range names {
		ts, err := e.client.Create(cmd.Context(), fs)
		if err != nil {
			e.recorder.Record(store.ActionCreate, fs, "", err)
			errs = append(errs, fmt.Errorf("failed to snapshot %s: %w", fs, err))
			continue
		}
		name := zfs.FormatSnapshotName(fs, ts)
		e.recorder.Record(store.ActionCreate, fs, name, nil)
		fmt.Fprintf(out, "✓ Created %s\n", name)
	}
	return errors.Join(errs...)
}
