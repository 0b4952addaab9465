package model

import "time"

// Interval is a half-open [Start, End) span of zoned time. Start < End always.
type Interval struct {
	Start time.Time `json:"start" bson:"start_time"`
	End   time.Time `json:"end" bson:"end_time"`
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints do not conflict, so back-to-back bookings are allowed.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}
