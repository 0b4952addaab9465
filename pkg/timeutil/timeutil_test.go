package timeutil

import (
	"testing"
	"time"
)

var kolkata = mustLoad("Asia/Kolkata")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func TestParseTimestampNaiveGetsZone(t *testing.T) {
	got, err := ParseTimestamp("2026-09-01T10:00:00", kolkata)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 9, 1, 10, 0, 0, 0, kolkata)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got.Location() != kolkata {
		t.Errorf("expected Asia/Kolkata location, got %v", got.Location())
	}
}

func TestParseTimestampZonedIsConverted(t *testing.T) {
	got, err := ParseTimestamp("2026-09-01T04:30:00Z", kolkata)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 04:30 UTC is 10:00 in Kolkata (+05:30).
	want := time.Date(2026, 9, 1, 10, 0, 0, 0, kolkata)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseTimestampSpaceSeparator(t *testing.T) {
	got, err := ParseTimestamp("2026-09-01 10:00:00", kolkata)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Hour() != 10 {
		t.Errorf("expected hour 10, got %d", got.Hour())
	}
}

func TestParseTimestampBareDate(t *testing.T) {
	got, err := ParseTimestamp("2026-09-01", kolkata)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, kolkata)
	if !got.Equal(want) {
		t.Errorf("expected midnight, got %v", got)
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "  ", "next tuesday", "2026-13-01T10:00:00"} {
		if _, err := ParseTimestamp(bad, kolkata); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"09:00", 9 * time.Hour},
		{"09:30", 9*time.Hour + 30*time.Minute},
		{"23:59:59", 23*time.Hour + 59*time.Minute + 59*time.Second},
		{"00:00", 0},
	}
	for _, c := range cases {
		got, err := ParseClock(c.in)
		if err != nil {
			t.Errorf("ParseClock(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseClock(%q): expected %v, got %v", c.in, c.want, got)
		}
	}
}

func TestParseClockRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "25:00", "9am", "09:61"} {
		if _, err := ParseClock(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestAtClock(t *testing.T) {
	day := time.Date(2026, 9, 1, 0, 0, 0, 0, kolkata)
	got := AtClock(day, 9*time.Hour+30*time.Minute, kolkata)
	want := time.Date(2026, 9, 1, 9, 30, 0, 0, kolkata)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2026, 9, 1, 15, 30, 0, 0, kolkata)
	if got := FormatDate(d); got != "2026-09-01" {
		t.Errorf("expected 2026-09-01, got %s", got)
	}
}
