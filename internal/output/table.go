// Package output renders zsnapper's terminal output.
//
// Tables use plain ASCII padding with ANSI colors when stdout is a terminal
// and NO_COLOR is unset. Progress indicators degrade to a single line on
// non-terminal writers so logs and pipes stay readable.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/fredrik-eriksson/zsnapper/internal/prune"
	"github.com/fredrik-eriksson/zsnapper/internal/retention"
	"github.com/fredrik-eriksson/zsnapper/internal/store"
	"github.com/fredrik-eriksson/zsnapper/internal/zfs"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// now is replaced by tests that render relative times.
var now = time.Now

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// FilesystemRow is one line of the filesystem listing.
type FilesystemRow struct {
	Name      string
	Managed   bool
	Snapshots int
	Newest    time.Time
}

// RenderFilesystemTable renders the filesystems zfs reports, marking the
// ones present in the configuration.
func RenderFilesystemTable(rows []FilesystemRow) string {
	if len(rows) == 0 {
		return "No filesystems found.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-32s %-8s %-10s %s\n", "Filesystem", "Managed", "Snapshots", "Newest"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, r := range rows {
		managed := "no"
		if r.Managed {
			managed = colorize(colorGreen, "yes")
		}
		newest := "-"
		if !r.Newest.IsZero() {
			newest = formatRelativeTime(r.Newest)
		}
		sb.WriteString(fmt.Sprintf("%-32s %-8s %-10d %s\n", truncate(r.Name, 32), managed, r.Snapshots, newest))
	}

	return sb.String()
}

// RenderSnapshotTable renders the managed snapshots of every filesystem,
// newest first within each filesystem.
func RenderSnapshotTable(snapshots map[string][]time.Time, loc *time.Location) string {
	if len(snapshots) == 0 {
		return "No snapshots found.\n"
	}

	names := make([]string, 0, len(snapshots))
	for fs := range snapshots {
		names = append(names, fs)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-48s %s\n", "Snapshot", "Age"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, fs := range names {
		list := append([]time.Time(nil), snapshots[fs]...)
		sort.Slice(list, func(i, j int) bool { return list[i].After(list[j]) })
		for _, ts := range list {
			sb.WriteString(fmt.Sprintf("%-48s %s\n", zfs.FormatSnapshotName(fs, ts.In(loc)), formatRelativeTime(ts)))
		}
	}

	return sb.String()
}

// RenderPrunePlan renders the keep/remove decision for every snapshot of a
// filesystem together with the granularities that keep it.
func RenderPrunePlan(fs string, plan retention.Result, loc *time.Location) string {
	all := make([]time.Time, 0, len(plan.Keep)+len(plan.Remove))
	all = append(all, plan.Keep...)
	all = append(all, plan.Remove...)
	if len(all) == 0 {
		return fmt.Sprintf("No snapshots of %s.\n", fs)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].After(all[j]) })

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-40s %-8s %s\n", "Snapshot", "Action", "Kept by"))
	sb.WriteString(strings.Repeat("─", 72))
	sb.WriteString("\n")

	for _, ts := range all {
		name := zfs.FormatSnapshotName(fs, ts.In(loc))
		claims := plan.ClaimedBy(ts)
		if len(claims) == 0 {
			sb.WriteString(fmt.Sprintf("%-40s %s\n", truncate(name, 40), padColor(colorRed, "remove", 8)))
			continue
		}
		labels := make([]string, len(claims))
		for i, g := range claims {
			labels[i] = g.String()
		}
		sb.WriteString(fmt.Sprintf("%-40s %s %s\n", truncate(name, 40), padColor(colorGreen, "keep", 8), strings.Join(labels, ", ")))
	}

	sb.WriteString(fmt.Sprintf("\n%d to keep, %d to remove\n", len(plan.Keep), len(plan.Remove)))
	return sb.String()
}

// RenderPruneSummary renders the outcome of a non dry-run prune.
func RenderPruneSummary(report *prune.Report, loc *time.Location) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("✓ %s: removed %d snapshots, kept %d\n",
		report.Filesystem, len(report.Removed), len(report.Plan.Keep)))

	if report.Failed() {
		sb.WriteString(colorize(colorYellow, fmt.Sprintf("⚠ %d failures:\n", len(report.Failures))))
		for _, f := range report.Failures {
			sb.WriteString(fmt.Sprintf("  - %s: %v\n", zfs.FormatSnapshotName(report.Filesystem, f.Snapshot.In(loc)), f.Err))
		}
	}

	return sb.String()
}

// RenderEventTable renders journal entries in the order given.
func RenderEventTable(events []store.Event) string {
	if len(events) == 0 {
		return "No recorded actions.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-19s %-8s %-6s %-40s %s\n", "Time", "Action", "Result", "Snapshot", "Detail"))
	sb.WriteString(strings.Repeat("─", 100))
	sb.WriteString("\n")

	for _, e := range events {
		result := padColor(colorGreen, "ok", 6)
		if !e.OK {
			result = padColor(colorRed, "failed", 6)
		}
		target := e.Snapshot
		if target == "" {
			target = e.Filesystem
		}
		sb.WriteString(fmt.Sprintf("%-19s %-8s %s %-40s %s\n",
			e.At.Local().Format("2006-01-02 15:04:05"),
			string(e.Action),
			result,
			truncate(target, 40),
			colorize(colorGray, truncate(firstLine(e.Detail), 60))))
	}

	return sb.String()
}

// padColor pads text to width before coloring so escape codes do not
// break column alignment.
func padColor(color, text string, width int) string {
	return colorize(color, fmt.Sprintf("%-*s", width, text))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := now().Sub(t)

	switch {
	case diff < 0:
		return "in the future"
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
