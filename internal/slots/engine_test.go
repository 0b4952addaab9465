package slots

import (
	"testing"
	"time"

	"medsched/pkg/model"
)

var kolkata = mustLoadLocation("Asia/Kolkata")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func dayRule(date string, start, end time.Duration, slotMinutes int) model.AvailabilityRule {
	d, err := time.ParseInLocation("2006-01-02", date, kolkata)
	if err != nil {
		panic(err)
	}
	return model.AvailabilityRule{
		ResourceID:  "doc-1",
		Date:        d,
		WindowStart: start,
		WindowEnd:   end,
		SlotMinutes: slotMinutes,
	}
}

func at(date string, h, m int) time.Time {
	d, err := time.ParseInLocation("2006-01-02", date, kolkata)
	if err != nil {
		panic(err)
	}
	return d.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func TestEnumerateBasicWindow(t *testing.T) {
	rules := []model.AvailabilityRule{
		dayRule("2026-09-01", 9*time.Hour, 11*time.Hour, 30),
	}
	now := at("2026-08-28", 8, 0)

	got := Enumerate(rules, nil, now, Options{
		Duration: 30 * time.Minute,
		Location: kolkata,
	})

	want := []time.Time{
		at("2026-09-01", 9, 0),
		at("2026-09-01", 9, 30),
		at("2026-09-01", 10, 0),
		at("2026-09-01", 10, 30),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(got))
	}
	for i, slot := range got {
		if !slot.Start.Equal(want[i]) {
			t.Errorf("slot %d: expected start %v, got %v", i, want[i], slot.Start)
		}
		if !slot.End.Equal(want[i].Add(30 * time.Minute)) {
			t.Errorf("slot %d: expected 30 minute duration, got end %v", i, slot.End)
		}
	}
}

func TestEnumerateStepFinerThanDuration(t *testing.T) {
	// A 60-minute appointment offered on a 30-minute grid.
	rules := []model.AvailabilityRule{
		dayRule("2026-09-01", 9*time.Hour, 12*time.Hour, 30),
	}
	now := at("2026-08-28", 8, 0)

	got := Enumerate(rules, nil, now, Options{
		Duration: 60 * time.Minute,
		Step:     30 * time.Minute,
		Location: kolkata,
	})

	want := []time.Time{
		at("2026-09-01", 9, 0),
		at("2026-09-01", 9, 30),
		at("2026-09-01", 10, 0),
		at("2026-09-01", 10, 30),
		at("2026-09-01", 11, 0),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(got))
	}
	for i, slot := range got {
		if !slot.Start.Equal(want[i]) {
			t.Errorf("slot %d: expected start %v, got %v", i, want[i], slot.Start)
		}
	}
}

func TestEnumerateSkipsBusyOverlaps(t *testing.T) {
	rules := []model.AvailabilityRule{
		dayRule("2026-09-01", 9*time.Hour, 11*time.Hour, 30),
	}
	busy := []model.Interval{
		{Start: at("2026-09-01", 9, 30), End: at("2026-09-01", 10, 0)},
	}
	now := at("2026-08-28", 8, 0)

	got := Enumerate(rules, busy, now, Options{
		Duration: 30 * time.Minute,
		Location: kolkata,
	})

	want := []time.Time{
		at("2026-09-01", 9, 0),
		at("2026-09-01", 10, 0),
		at("2026-09-01", 10, 30),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d: %v", len(want), len(got), got)
	}
	for i, slot := range got {
		if !slot.Start.Equal(want[i]) {
			t.Errorf("slot %d: expected start %v, got %v", i, want[i], slot.Start)
		}
	}
}

func TestEnumerateBackToBackAllowed(t *testing.T) {
	// A busy interval ending at 10:00 must not block the 10:00 slot.
	rules := []model.AvailabilityRule{
		dayRule("2026-09-01", 10*time.Hour, 11*time.Hour, 60),
	}
	busy := []model.Interval{
		{Start: at("2026-09-01", 9, 0), End: at("2026-09-01", 10, 0)},
	}
	now := at("2026-08-28", 8, 0)

	got := Enumerate(rules, busy, now, Options{
		Duration: 60 * time.Minute,
		Location: kolkata,
	})

	if len(got) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(got))
	}
	if !got[0].Start.Equal(at("2026-09-01", 10, 0)) {
		t.Errorf("expected slot at 10:00, got %v", got[0].Start)
	}
}

func TestEnumerateDropsPastSlots(t *testing.T) {
	rules := []model.AvailabilityRule{
		dayRule("2026-09-01", 9*time.Hour, 11*time.Hour, 30),
	}
	now := at("2026-09-01", 9, 45)

	got := Enumerate(rules, nil, now, Options{
		Duration: 30 * time.Minute,
		Location: kolkata,
	})

	// 09:00-09:30 ends before 09:45 and is dropped; 09:30-10:00 ends after
	// now and stays even though it already started.
	want := []time.Time{
		at("2026-09-01", 9, 30),
		at("2026-09-01", 10, 0),
		at("2026-09-01", 10, 30),
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(got))
	}
	for i, slot := range got {
		if !slot.Start.Equal(want[i]) {
			t.Errorf("slot %d: expected start %v, got %v", i, want[i], slot.Start)
		}
	}
}

func TestEnumerateGlobalSortBeforeTruncation(t *testing.T) {
	// Rules arrive out of date order; the cap must keep the earliest slots,
	// not the first rule's slots.
	rules := []model.AvailabilityRule{
		dayRule("2026-09-02", 9*time.Hour, 10*time.Hour, 30),
		dayRule("2026-09-01", 9*time.Hour, 10*time.Hour, 30),
	}
	now := at("2026-08-28", 8, 0)

	got := Enumerate(rules, nil, now, Options{
		Duration:   30 * time.Minute,
		MaxResults: 2,
		Location:   kolkata,
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 slots, got %d", len(got))
	}
	if !got[0].Start.Equal(at("2026-09-01", 9, 0)) || !got[1].Start.Equal(at("2026-09-01", 9, 30)) {
		t.Errorf("expected slots from the earlier day, got %v and %v", got[0].Start, got[1].Start)
	}
}

func TestEnumerateSlotMustFitWindow(t *testing.T) {
	// 90 minutes cannot fit a 60-minute window.
	rules := []model.AvailabilityRule{
		dayRule("2026-09-01", 9*time.Hour, 10*time.Hour, 30),
	}
	now := at("2026-08-28", 8, 0)

	got := Enumerate(rules, nil, now, Options{
		Duration: 90 * time.Minute,
		Location: kolkata,
	})
	if len(got) != 0 {
		t.Fatalf("expected no slots, got %d", len(got))
	}
}

func TestEnumerateEmptyRules(t *testing.T) {
	got := Enumerate(nil, nil, at("2026-09-01", 9, 0), Options{
		Duration: 30 * time.Minute,
		Location: kolkata,
	})
	if len(got) != 0 {
		t.Fatalf("expected no slots, got %d", len(got))
	}
}
