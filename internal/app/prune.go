package app

import (
	"errors"
	"fmt"

	"github.com/fredrik-eriksson/zsnapper/internal/output"
	"github.com/fredrik-eriksson/zsnapper/internal/prune"
	"github.com/spf13/cobra"
)

var (
	pruneDryRun bool

	pruneCmd = &cobra.Command{
		Use:   "prune [filesystem...]",
		Short: "Remove snapshots the retention policy does not keep",
		Long: `Apply each filesystem's retention policy to its snapshots and destroy
the ones no granularity keeps.

For every granularity (yearly, monthly, weekly, daily, hourly, 30, 15, 5
and 1 minute, and an optional custom interval) the oldest snapshot of each
period represents it, and the representatives of the most recent N periods
are kept.

A failed destroy is reported and the remaining snapshots are still
processed. Filesystems without a retention policy are skipped.`,
		Example: `  # Show the keep/remove decision without destroying anything
  zsnapper prune --dry-run

  # Prune one filesystem
  zsnapper prune tank/home`,
		RunE: runPrune,
	}
)

func init() {
	pruneCmd.Flags().BoolVarP(&pruneDryRun, "dry-run", "n", false, "show what would be removed without removing")

	RootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	e, err := openEnv(!pruneDryRun)
	if err != nil {
		return err
	}
	defer e.Close()

	targets, err := e.targets(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	pruner := e.pruner(nil)

	var errs []error
	for _, fs := range targets {
		if fs.Retention.IsZero() {
			fmt.Fprintf(out, "%s: no retention policy configured, skipping\n", fs.Name)
			continue
		}

		var bar *output.Progress
		opts := prune.Options{
			DryRun: pruneDryRun,
			Progress: func(done, total int) {
				if bar == nil {
					bar = output.NewProgress(cmd.ErrOrStderr(), total, "Pruning "+fs.Name)
				}
				bar.Increment()
			},
		}
		report, err := pruner.Prune(cmd.Context(), fs.Name, fs.Retention, opts)
		if bar != nil {
			bar.Finish()
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if pruneDryRun {
			fmt.Fprintf(out, "%s:\n", fs.Name)
			fmt.Fprintln(out, output.RenderPrunePlan(fs.Name, report.Plan, e.location()))
			continue
		}

		fmt.Fprint(out, output.RenderPruneSummary(report, e.location()))
		if report.Failed() {
			errs = append(errs, fmt.Errorf("failed to remove %d snapshots of %s", len(report.Failures), fs.Name))
		}
	}
	return errors.Join(errs...)
}
