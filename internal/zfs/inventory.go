package zfs

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
)

var snapshotNameRe = regexp.MustCompile(`^(.*)@([0-9]{4}-[0-9]{2}-[0-9]{2}_[0-9]{4})$`)

// FormatSnapshotName returns the managed snapshot name for fs at ts.
func FormatSnapshotName(fs string, ts time.Time) string {
	return fs + "@" + ts.Format(TimeFormat)
}

// ParseSnapshotName splits a managed snapshot name into its filesystem and
// timestamp. Names not created by this tool report ok == false.
func ParseSnapshotName(name string, loc *time.Location) (fs string, ts time.Time, ok bool) {
	m := snapshotNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	ts, err := time.ParseInLocation(TimeFormat, m[2], loc)
	if err != nil {
		return "", time.Time{}, false
	}
	return m[1], ts, true
}

// ListFilesystems returns every dataset name reported by `list -H`, sorted
// and without duplicates.
func (c *Client) ListFilesystems(ctx context.Context) ([]string, error) {
	out, err := c.run(ctx, []string{"list", "-H"}, nil)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, name := range firstFields(out) {
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ListSnapshots returns the managed snapshots of every filesystem, newest
// first. Snapshots whose names do not follow the <fs>@YYYY-MM-DD_HHMM
// convention are ignored.
func (c *Client) ListSnapshots(ctx context.Context) (map[string][]time.Time, error) {
	out, err := c.run(ctx, []string{"list", "-H", "-t", "snapshot"}, nil)
	if err != nil {
		return nil, err
	}
	return parseSnapshots(out, c.location), nil
}

// Snapshots returns the managed snapshots of a single filesystem, newest first.
func (c *Client) Snapshots(ctx context.Context, fs string) ([]time.Time, error) {
	all, err := c.ListSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	return all[fs], nil
}

func parseSnapshots(out []byte, loc *time.Location) map[string][]time.Time {
	result := make(map[string][]time.Time)
	for _, name := range firstFields(out) {
		fs, ts, ok := ParseSnapshotName(name, loc)
		if !ok {
			continue
		}
		result[fs] = append(result[fs], ts)
	}
	for fs := range result {
		list := result[fs]
		sort.Slice(list, func(i, j int) bool { return list[i].After(list[j]) })
	}
	return result
}

// firstFields returns the first whitespace separated field of every
// non-empty line.
func firstFields(out []byte) []string {
	var fields []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		f := strings.Fields(scanner.Text())
		if len(f) == 0 {
			continue
		}
		fields = append(fields, f[0])
	}
	return fields
}
