package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	// 2024-03-14 is a Thursday.
	in := time.Date(2024, time.March, 14, 17, 47, 0, 0, time.UTC)

	tests := []struct {
		g        Granularity
		interval time.Duration
		want     time.Time
	}{
		{Yearly, 0, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)},
		{Monthly, 0, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)},
		{Weekly, 0, time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)},
		{Daily, 0, time.Date(2024, time.March, 14, 0, 0, 0, 0, time.UTC)},
		{Hourly, 0, time.Date(2024, time.March, 14, 17, 0, 0, 0, time.UTC)},
		{Min30, 0, time.Date(2024, time.March, 14, 17, 30, 0, 0, time.UTC)},
		{Min15, 0, time.Date(2024, time.March, 14, 17, 45, 0, 0, time.UTC)},
		{Min5, 0, time.Date(2024, time.March, 14, 17, 45, 0, 0, time.UTC)},
		{Min1, 0, time.Date(2024, time.March, 14, 17, 47, 0, 0, time.UTC)},
		// 73 days (1752h) into the year plus 17h47m; 4h buckets start at 16:00.
		{Custom, 4 * time.Hour, time.Date(2024, time.March, 14, 16, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.g.String(), func(t *testing.T) {
			got := Truncate(in, tt.g, tt.interval)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestTruncateWeekBoundaries(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"monday stays", time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC), time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)},
		{"sunday goes back six days", time.Date(2024, time.March, 17, 23, 59, 0, 0, time.UTC), time.Date(2024, time.March, 11, 0, 0, 0, 0, time.UTC)},
		{"crosses month", time.Date(2024, time.March, 2, 10, 0, 0, 0, time.UTC), time.Date(2024, time.February, 26, 0, 0, 0, 0, time.UTC)},
		{"crosses year", time.Date(2025, time.January, 1, 8, 0, 0, 0, time.UTC), time.Date(2024, time.December, 30, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, Weekly, 0)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}
}

func TestTruncateCustomOnBoundary(t *testing.T) {
	// A timestamp exactly on a boundary belongs to the bucket starting there.
	in := time.Date(2024, time.January, 1, 6, 0, 0, 0, time.UTC)
	got := Truncate(in, Custom, 3*time.Hour)
	assert.True(t, got.Equal(in))

	// Buckets restart every year.
	in = time.Date(2025, time.January, 1, 1, 0, 0, 0, time.UTC)
	got = Truncate(in, Custom, 7*24*time.Hour)
	assert.True(t, got.Equal(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestTruncateKeepsLocation(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	in := time.Date(2024, time.January, 1, 0, 30, 0, 0, loc)

	got := Truncate(in, Daily, 0)
	assert.Equal(t, loc, got.Location())
	assert.True(t, got.Equal(time.Date(2024, time.January, 1, 0, 0, 0, 0, loc)))
}
