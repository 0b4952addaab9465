// Package slots enumerates bookable appointment slots. The engine itself is
// pure: it sees availability rules and busy intervals and does no I/O, so
// every edge case is testable without a database.
package slots

import (
	"sort"
	"time"

	"medsched/pkg/model"
)

type Options struct {
	// Duration of each candidate slot. Must be positive.
	Duration time.Duration
	// Step between candidate starts. Zero means each rule's own slot length.
	Step time.Duration
	// MaxResults caps the output after the global sort. Zero means no cap.
	MaxResults int
	// Location resolves rule windows to zoned instants.
	Location *time.Location
}

// Enumerate generates free slots from availability rules, removing candidates
// that overlap a busy interval or end at or before now. Candidates from all
// rules are collected first, then sorted ascending by start and truncated,
// so a cap never starves later windows of earlier slots.
func Enumerate(rules []model.AvailabilityRule, busy []model.Interval, now time.Time, opts Options) []model.Interval {
	if opts.Duration <= 0 {
		return nil
	}

	loc := opts.Location
	if loc == nil {
		loc = now.Location()
	}

	var candidates []model.Interval
	for _, rule := range rules {
		window := rule.Window(loc)

		step := opts.Step
		if step <= 0 {
			step = time.Duration(rule.SlotMinutes) * time.Minute
		}
		if step <= 0 {
			continue
		}

		for start := window.Start; !start.Add(opts.Duration).After(window.End); start = start.Add(step) {
			cand := model.Interval{Start: start, End: start.Add(opts.Duration)}
			if !cand.End.After(now) {
				continue
			}
			if conflicts(cand, busy) {
				continue
			}
			candidates = append(candidates, cand)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Start.Before(candidates[j].Start)
	})

	if opts.MaxResults > 0 && len(candidates) > opts.MaxResults {
		candidates = candidates[:opts.MaxResults]
	}
	return candidates
}

// conflicts applies the half-open overlap test, so a slot ending exactly
// when a booking starts is still free.
func conflicts(cand model.Interval, busy []model.Interval) bool {
	for _, b := range busy {
		if cand.Overlaps(b) {
			return true
		}
	}
	return false
}
