package retention

import (
	"fmt"
	"time"
)

// Granularity is a bucketing rule for snapshot timestamps.
type Granularity int

const (
	Yearly Granularity = iota
	Monthly
	Weekly
	Daily
	Hourly
	Min30
	Min15
	Min5
	Min1
	Custom
)

// Granularities lists every granularity in evaluation order.
var Granularities = []Granularity{Yearly, Monthly, Weekly, Daily, Hourly, Min30, Min15, Min5, Min1, Custom}

var granularityNames = map[Granularity]string{
	Yearly:  "yearly",
	Monthly: "monthly",
	Weekly:  "weekly",
	Daily:   "daily",
	Hourly:  "hourly",
	Min30:   "min30",
	Min15:   "min15",
	Min5:    "min5",
	Min1:    "min1",
	Custom:  "custom",
}

// String returns the configuration key of the granularity.
func (g Granularity) String() string {
	if name, ok := granularityNames[g]; ok {
		return name
	}
	return fmt.Sprintf("granularity(%d)", int(g))
}

// Policy holds the number of buckets to keep per granularity. A zero count
// keeps nothing from that granularity.
type Policy struct {
	Yearly  int `koanf:"yearly"`
	Monthly int `koanf:"monthly"`
	Weekly  int `koanf:"weekly"`
	Daily   int `koanf:"daily"`
	Hourly  int `koanf:"hourly"`
	Min30   int `koanf:"min30"`
	Min15   int `koanf:"min15"`
	Min5    int `koanf:"min5"`
	Min1    int `koanf:"min1"`

	// Custom buckets start at the beginning of the timestamp's year and are
	// CustomInterval long. Disabled unless CustomInterval is positive.
	CustomInterval time.Duration `koanf:"custom_interval"`
	Custom         int           `koanf:"custom"`
}

// Count returns the keep count configured for g.
func (p Policy) Count(g Granularity) int {
	switch g {
	case Yearly:
		return p.Yearly
	case Monthly:
		return p.Monthly
	case Weekly:
		return p.Weekly
	case Daily:
		return p.Daily
	case Hourly:
		return p.Hourly
	case Min30:
		return p.Min30
	case Min15:
		return p.Min15
	case Min5:
		return p.Min5
	case Min1:
		return p.Min1
	case Custom:
		return p.Custom
	}
	return 0
}

// Active reports whether g participates in retention under p.
func (p Policy) Active(g Granularity) bool {
	if g == Custom {
		return p.CustomInterval > 0
	}
	return true
}

// Validate rejects negative counts and a negative custom interval.
func (p Policy) Validate() error {
	for _, g := range Granularities {
		if p.Count(g) < 0 {
			return fmt.Errorf("%s count must not be negative (got %d)", g, p.Count(g))
		}
	}
	if p.CustomInterval < 0 {
		return fmt.Errorf("custom_interval must not be negative (got %s)", p.CustomInterval)
	}
	return nil
}

// IsZero reports whether the policy keeps nothing at all.
func (p Policy) IsZero() bool {
	for _, g := range Granularities {
		if p.Active(g) && p.Count(g) > 0 {
			return false
		}
	}
	return true
}
