package app

import (
	"fmt"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/output"
	"github.com/fredrik-eriksson/zsnapper/internal/store"
	"github.com/spf13/cobra"
)

var (
	historyFilesystem string
	historyRun        string
	historyFailed     bool
	historyLimit      int
	historyPurge      time.Duration
	historySummary    bool

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show the journal of past actions",
		Long: `Show the snapshots zsnapper created, destroyed and sent, newest first.

The journal is an audit trail only. Retention and scheduling decisions
are always made from the live snapshot list.`,
		Example: `  # Recent failures
  zsnapper history --failed

  # Everything one scheduled run did
  zsnapper history --run 01HRZ7Q6Y3K9V1D2X4M5N6P7Q8

  # Drop entries older than 90 days
  zsnapper history --purge-older-than 2160h`,
		Args: cobra.NoArgs,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().StringVarP(&historyFilesystem, "filesystem", "f", "", "only show actions on this filesystem")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "only show actions of this run id")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "only show failed actions")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 50, "maximum number of entries (0 for all)")
	historyCmd.Flags().DurationVar(&historyPurge, "purge-older-than", 0, "delete entries older than this age instead of listing")
	historyCmd.Flags().BoolVar(&historySummary, "summary", false, "print totals per action")

	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.Open(journalPath(cfg))
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if historyPurge > 0 {
		removed, err := st.PruneEvents(time.Now().Add(-historyPurge))
		if err != nil {
			return fmt.Errorf("failed to purge journal: %w", err)
		}
		fmt.Fprintf(out, "✓ Removed %d journal entries\n", removed)
		return nil
	}

	if historySummary {
		fmt.Fprintf(out, "%-8s %8s %8s\n", "Action", "Total", "Failed")
		for _, action := range []store.Action{store.ActionCreate, store.ActionDestroy, store.ActionSend} {
			total, err := st.CountEvents(action, false)
			if err != nil {
				return err
			}
			failed, err := st.CountEvents(action, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%-8s %8d %8d\n", action, total, failed)
		}
		return nil
	}

	events, err := st.ListEvents(store.EventFilter{
		Filesystem: historyFilesystem,
		RunID:      historyRun,
		FailedOnly: historyFailed,
		Limit:      historyLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}

	fmt.Fprint(out, output.RenderEventTable(events))
	return nil
}
