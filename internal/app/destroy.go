package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/store"
	"github.com/spf13/cobra"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <filesystem@YYYY-MM-DD_HHMM>...",
	Short: "Destroy specific snapshots",
	Long: `Destroy the named snapshots. Only snapshots that follow zsnapper's
naming scheme are accepted, so hand-made snapshots cannot be removed by
accident.`,
	Example: `  zsnapper destroy tank/home@2024-03-01_1200`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runDestroy,
}

func init() {
	RootCmd.AddCommand(destroyCmd)
}

func runDestroy(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	// Validate every argument before destroying anything.
	type target struct {
		arg string
		fs  string
		ts  time.Time
	}
	targets := make([]target, 0, len(args))
	for _, arg := range args {
		fs, ts, err := parseSnapshotArg(arg, e.location())
		if err != nil {
			return err
		}
		targets = append(targets, target{arg, fs, ts})
	}

	out := cmd.OutOrStdout()
	var errs []error
	for _, t := range targets {
		err := e.client.Remove(cmd.Context(), t.fs, t.ts)
		e.recorder.Record(store.ActionDestroy, t.fs, t.arg, err)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy %s: %w", t.arg, err))
			continue
		}
		fmt.Fprintf(out, "✓ Destroyed %s\n", t.arg)
	}
	return errors.Join(errs...)
}
