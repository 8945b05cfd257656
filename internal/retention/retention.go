// Package retention decides which snapshots a grandfather-father-son policy
// keeps. It is a pure function of its inputs.
package retention

import (
	"sort"
	"time"
)

// Result is the outcome of applying a Policy.
type Result struct {
	// Keep and Remove are disjoint, sorted oldest first, and together hold
	// every distinct input timestamp.
	Keep   []time.Time
	Remove []time.Time

	// Claims maps the UnixNano of each kept timestamp to the granularities
	// that selected it, in evaluation order.
	Claims map[int64][]Granularity
}

// ClaimedBy returns the granularities that keep ts.
func (r Result) ClaimedBy(ts time.Time) []Granularity {
	return r.Claims[ts.UnixNano()]
}

// Kept reports whether ts is in the keep set.
func (r Result) Kept(ts time.Time) bool {
	_, ok := r.Claims[ts.UnixNano()]
	return ok
}

// Apply partitions timestamps into keep and remove sets.
//
// For every active granularity the timestamps are grouped into buckets; the
// oldest timestamp of each bucket represents it. Only the representatives of
// the most recent Count(g) buckets are kept.
func Apply(timestamps []time.Time, p Policy) Result {
	sorted := sortUnique(timestamps)

	claims := make(map[int64][]Granularity)
	for _, g := range Granularities {
		if !p.Active(g) {
			continue
		}
		count := p.Count(g)
		if count <= 0 {
			continue
		}

		reps := representatives(sorted, g, p.CustomInterval)
		if len(reps) > count {
			reps = reps[len(reps)-count:]
		}
		for _, ts := range reps {
			key := ts.UnixNano()
			claims[key] = append(claims[key], g)
		}
	}

	result := Result{Claims: claims}
	for _, ts := range sorted {
		if _, ok := claims[ts.UnixNano()]; ok {
			result.Keep = append(result.Keep, ts)
		} else {
			result.Remove = append(result.Remove, ts)
		}
	}
	return result
}

// Partition is Apply without the claim bookkeeping.
func Partition(timestamps []time.Time, p Policy) (keep, remove []time.Time) {
	r := Apply(timestamps, p)
	return r.Keep, r.Remove
}

// representatives returns, oldest first, the first timestamp of every bucket
// of g. sorted must be ascending.
func representatives(sorted []time.Time, g Granularity, interval time.Duration) []time.Time {
	var reps []time.Time
	var last int64
	for i, ts := range sorted {
		boundary := Truncate(ts, g, interval).UnixNano()
		if i == 0 || boundary != last {
			reps = append(reps, ts)
			last = boundary
		}
	}
	return reps
}

// sortUnique returns an ascending copy of ts with equal instants collapsed
// and monotonic clock readings stripped.
func sortUnique(ts []time.Time) []time.Time {
	out := make([]time.Time, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.Round(0))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })

	uniq := out[:0]
	for i, t := range out {
		if i > 0 && t.Equal(uniq[len(uniq)-1]) {
			continue
		}
		uniq = append(uniq, t)
	}
	return uniq
}
