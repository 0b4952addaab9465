// Package timeutil is the single ingestion boundary for timestamps. Every
// time value entering the system is normalized to the canonical zone here;
// downstream code never compares a naive and a zoned timestamp.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout       = "2006-01-02"
	clockLayout      = "15:04"
	clockLayoutSecs  = "15:04:05"
	naiveLayout      = "2006-01-02T15:04:05"
	naiveLayoutSpace = "2006-01-02 15:04:05"
)

// ParseTimestamp parses an ISO-8601 timestamp. A value without an offset is
// interpreted in loc; a zoned value is converted to loc.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}

	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{naiveLayout, naiveLayoutSpace, dateLayout} {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", value)
}

// ParseDate parses a YYYY-MM-DD calendar date in loc, at midnight.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	v := strings.TrimSpace(value)
	t, err := time.ParseInLocation(dateLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparsable date %q", value)
	}
	return t, nil
}

// ParseClock parses an HH:MM or HH:MM:SS time-of-day string.
func ParseClock(value string) (time.Duration, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, fmt.Errorf("empty time of day")
	}

	layout := clockLayout
	if strings.Count(v, ":") == 2 {
		layout = clockLayoutSecs
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return 0, fmt.Errorf("unparsable time of day %q", value)
	}
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second, nil
}

// AtClock combines a calendar day in loc with a time-of-day offset.
func AtClock(day time.Time, clock time.Duration, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(clock)
}

// Normalize attaches loc to a zone-less timestamp and converts zoned ones.
func Normalize(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}

// FormatDate renders t as a YYYY-MM-DD string in its own location.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}
