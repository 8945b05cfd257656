package zfs

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Client.
type Options struct {
	// Elevate runs every invocation through the sudo wrapper.
	Elevate bool
	// Password is written to sudo's stdin when set.
	Password string
	// Location is used to format and parse snapshot timestamps.
	Location *time.Location
	// Now replaces the wall clock. Used by tests.
	Now func() time.Time
}

// Client wraps the zfs command line tool.
type Client struct {
	runner   Runner
	base     []string
	elevate  bool
	secret   string
	location *time.Location
	now      func() time.Time
	log      zerolog.Logger
}

// New creates a Client that runs commands through runner.
func New(runner Runner, opts Options, log zerolog.Logger) *Client {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Client{
		runner:   runner,
		elevate:  opts.Elevate,
		secret:   opts.Password,
		location: loc,
		now:      now,
		log:      log,
	}
}

// Remote returns a copy of c whose invocations use base instead of the
// executor's configured command, e.g. {"ssh", "backup", "/sbin/zfs"}.
func (c *Client) Remote(base []string) *Client {
	cp := *c
	cp.base = append([]string(nil), base...)
	return &cp
}

// Location returns the time zone snapshot names are interpreted in.
func (c *Client) Location() *time.Location {
	return c.location
}

func (c *Client) run(ctx context.Context, args []string, pipe []string) ([]byte, error) {
	return c.runner.Run(ctx, Request{
		Args:    args,
		Base:    c.base,
		Elevate: c.elevate,
		Secret:  c.secret,
		Pipe:    pipe,
	})
}
