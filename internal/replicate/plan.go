// Package replicate keeps a remote dataset up to date with the newest local
// snapshot of a filesystem.
package replicate

import (
	"time"
)

// Plan is the send needed to bring a remote dataset up to date.
type Plan struct {
	// Snapshot is the newest local snapshot.
	Snapshot time.Time
	// From is the newest snapshot present on both sides. Zero for a full send.
	From time.Time
	// UpToDate is set when the remote already has Snapshot.
	UpToDate bool
	// NothingToSend is set when there are no local snapshots.
	NothingToSend bool
}

// Full reports whether the plan requires a full send.
func (p Plan) Full() bool {
	return !p.NothingToSend && !p.UpToDate && p.From.IsZero()
}

// NewPlan compares the local and remote snapshot lists (in any order).
func NewPlan(local, remote []time.Time) Plan {
	if len(local) == 0 {
		return Plan{NothingToSend: true}
	}

	onRemote := make(map[int64]bool, len(remote))
	for _, ts := range remote {
		onRemote[ts.UnixNano()] = true
	}

	var newest, common time.Time
	for _, ts := range local {
		if newest.IsZero() || ts.After(newest) {
			newest = ts
		}
		if onRemote[ts.UnixNano()] && (common.IsZero() || ts.After(common)) {
			common = ts
		}
	}

	plan := Plan{Snapshot: newest, From: common}
	if !common.IsZero() && common.Equal(newest) {
		plan.UpToDate = true
	}
	return plan
}
