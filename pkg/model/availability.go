package model

import "time"

// AvailabilityRule is one open window of a resource's recurring schedule,
// already normalized by the schedule service: the raw HH:MM strings are
// resolved to time-of-day offsets and the date to a canonical-zone midnight.
type AvailabilityRule struct {
	ResourceID  string
	Date        time.Time
	WindowStart time.Duration
	WindowEnd   time.Duration
	SlotMinutes int
}

// Window materializes the rule as a zoned [start, end) interval.
func (r AvailabilityRule) Window(loc *time.Location) Interval {
	y, m, d := r.Date.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Interval{
		Start: midnight.Add(r.WindowStart),
		End:   midnight.Add(r.WindowEnd),
	}
}

// AvailabilityRow is the wire/storage form of a rule, one row per open
// window. Times are HH:MM or HH:MM:SS strings in the canonical zone.
type AvailabilityRow struct {
	ResourceID  string `json:"resource_id,omitempty" bson:"resource_id"`
	Date        string `json:"date" bson:"date" validate:"required,datetime=2006-01-02"`
	WindowStart string `json:"window_start" bson:"window_start" validate:"required,clock_time"`
	WindowEnd   string `json:"window_end" bson:"window_end" validate:"required,clock_time"`
	SlotMinutes int    `json:"slot_minutes" bson:"slot_minutes" validate:"required,min=5,max=480"`
}
