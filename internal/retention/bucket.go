package retention

import "time"

// Truncate returns the start of the bucket of g that contains ts, in ts's
// own location. interval is only used by Custom.
func Truncate(ts time.Time, g Granularity, interval time.Duration) time.Time {
	loc := ts.Location()
	y, m, d := ts.Date()

	switch g {
	case Yearly:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc)
	case Weekly:
		// Weeks start on Monday.
		offset := (int(ts.Weekday()) + 6) % 7
		return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
	case Daily:
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case Hourly:
		return time.Date(y, m, d, ts.Hour(), 0, 0, 0, loc)
	case Min30:
		return floorMinutes(ts, 30)
	case Min15:
		return floorMinutes(ts, 15)
	case Min5:
		return floorMinutes(ts, 5)
	case Min1:
		return floorMinutes(ts, 1)
	case Custom:
		return floorCustom(ts, interval)
	}
	return ts
}

func floorMinutes(ts time.Time, n int) time.Time {
	y, m, d := ts.Date()
	return time.Date(y, m, d, ts.Hour(), ts.Minute()-ts.Minute()%n, 0, 0, ts.Location())
}

// floorCustom returns the largest yearStart + k*interval not after ts.
func floorCustom(ts time.Time, interval time.Duration) time.Time {
	start := time.Date(ts.Year(), time.January, 1, 0, 0, 0, 0, ts.Location())
	if interval <= 0 {
		return start
	}
	k := ts.Sub(start) / interval
	return start.Add(k * interval)
}
