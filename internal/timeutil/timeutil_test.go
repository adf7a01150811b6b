package timeutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithinLastMinutes(t *testing.T) {
	// Fixed reference point: 12:30 UTC (10 July, well away from DST edges)
	now := time.Date(2025, 7, 10, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		timeStr string
		window  int
		want    bool
	}{
		{"exact now", "12:30", 45, true},
		{"inside window", "12:00", 45, true},
		{"on the boundary", "11:45", 45, true},
		{"just outside window", "11:44", 45, false},
		{"hours old", "01:00", 45, false},
		{"future time counts as recent", "12:45", 45, true},
		{"tight window", "12:00", 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WithinLastMinutes(tt.timeStr, tt.window, now))
		})
	}
}

func TestWithinLastMinutesMalformed(t *testing.T) {
	now := time.Now()

	for _, bad := range []string{"", "bad-format", "25:00", "12:60", "12.30", "12:30:45"} {
		assert.False(t, WithinLastMinutes(bad, 45, now), "input %q", bad)
	}
}

func TestWithinLastMinutesMonotonic(t *testing.T) {
	// Widening the window must never turn a true result false.
	now := time.Date(2025, 7, 10, 12, 30, 0, 0, time.UTC)

	for hour := 0; hour < 13; hour++ {
		timeStr := fmt.Sprintf("%02d:15", hour)
		prev := false
		for _, window := range []int{1, 5, 45, 120, 600, 1440} {
			got := WithinLastMinutes(timeStr, window, now)
			if prev {
				assert.True(t, got, "window %d narrowed result for %s", window, timeStr)
			}
			prev = got
		}
	}
}

func TestPostedTimes(t *testing.T) {
	// July: Warsaw is UTC+2
	now := time.Date(2025, 7, 10, 12, 30, 0, 0, time.UTC)

	naive, pretty, err := PostedTimes("12:00", now)
	assert.NoError(t, err)
	assert.Equal(t, 14, naive.Hour())
	assert.Equal(t, 0, naive.Minute())
	assert.Equal(t, 10, naive.Day())
	assert.Equal(t, "10.07.2025 - *14:00*", pretty)

	// January: Warsaw is UTC+1
	winter := time.Date(2025, 1, 10, 12, 30, 0, 0, time.UTC)
	naive, pretty, err = PostedTimes("12:00", winter)
	assert.NoError(t, err)
	assert.Equal(t, 13, naive.Hour())
	assert.Equal(t, "10.01.2025 - *13:00*", pretty)
}

func TestPostedTimesDayRollover(t *testing.T) {
	// 23:30 UTC in summer is 01:30 next day in Warsaw; the converted date
	// must roll forward with the zone shift.
	now := time.Date(2025, 7, 10, 23, 45, 0, 0, time.UTC)

	naive, pretty, err := PostedTimes("23:30", now)
	assert.NoError(t, err)
	assert.Equal(t, 11, naive.Day())
	assert.Equal(t, 1, naive.Hour())
	assert.Equal(t, "11.07.2025 - *01:30*", pretty)
}

func TestPostedTimesMalformed(t *testing.T) {
	_, _, err := PostedTimes("not-a-time", time.Now())
	assert.Error(t, err)
}
