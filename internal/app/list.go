package app

import (
	"fmt"
	"time"

	"github.com/fredrik-eriksson/zsnapper/internal/output"
	"github.com/spf13/cobra"
)

var (
	listFilesystems bool
	listAll         bool

	listCmd = &cobra.Command{
		Use:   "list [filesystem...]",
		Short: "List managed snapshots",
		Long: `List the snapshots zsnapper manages, newest first.

Only snapshots named <filesystem>@YYYY-MM-DD_HHMM are shown. By default
the listing is limited to configured filesystems; --all includes every
filesystem zfs reports.`,
		Example: `  # Snapshots of all configured filesystems
  zsnapper list

  # One filesystem
  zsnapper list tank/home

  # Every filesystem and whether it is configured
  zsnapper list --filesystems`,
		RunE: runList,
	}
)

func init() {
	listCmd.Flags().BoolVar(&listFilesystems, "filesystems", false, "list filesystems instead of snapshots")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include filesystems that are not configured")

	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := openEnv(false)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	snapshots, err := e.client.ListSnapshots(ctx)
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if listFilesystems {
		names, err := e.client.ListFilesystems(ctx)
		if err != nil {
			return fmt.Errorf("failed to list filesystems: %w", err)
		}
		rows := make([]output.FilesystemRow, 0, len(names))
		for _, name := range names {
			_, cfgErr := e.cfg.Filesystem(name)
			if cfgErr != nil && !listAll {
				continue
			}
			row := output.FilesystemRow{Name: name, Managed: cfgErr == nil, Snapshots: len(snapshots[name])}
			if len(snapshots[name]) > 0 {
				row.Newest = snapshots[name][0]
			}
			rows = append(rows, row)
		}
		fmt.Fprint(cmd.OutOrStdout(), output.RenderFilesystemTable(rows))
		return nil
	}

	selected := snapshots
	if len(args) > 0 || !listAll {
		names := args
		if len(names) == 0 {
			names = e.cfg.Names()
		}
		selected = make(map[string][]time.Time, len(names))
		for _, name := range names {
			if list, ok := snapshots[name]; ok {
				selected[name] = list
			}
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderSnapshotTable(selected, e.location()))
	return nil
}
