package zfs

import (
	"context"
	"time"
)

// Create takes a snapshot of fs named after the current minute and returns
// the timestamp encoded in its name.
func (c *Client) Create(ctx context.Context, fs string) (time.Time, error) {
	now := c.now().In(c.location)
	ts := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), now.Minute(), 0, 0, c.location)

	name := FormatSnapshotName(fs, ts)
	if _, err := c.run(ctx, []string{"snapshot", name}, nil); err != nil {
		return time.Time{}, err
	}

	c.log.Info().Str("snapshot", name).Msg("snapshot created")
	return ts, nil
}

// Remove destroys the managed snapshot of fs taken at ts.
func (c *Client) Remove(ctx context.Context, fs string, ts time.Time) error {
	name := FormatSnapshotName(fs, ts.In(c.location))
	if _, err := c.run(ctx, []string{"destroy", name}, nil); err != nil {
		return err
	}

	c.log.Info().Str("snapshot", name).Msg("snapshot destroyed")
	return nil
}
