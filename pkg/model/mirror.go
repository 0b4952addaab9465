package model

import "time"

const (
	MirrorSourceLocal      = "local"
	MirrorSourceReconciled = "reconciled"
	MirrorSourceCancelled  = "cancelled"
)

// MirrorRecord is one append-only audit event mirroring a booking interval.
// Records are never updated in place; a cancellation appends a tombstone
// with MirrorSourceCancelled instead.
type MirrorRecord struct {
	EventID    string    `json:"event_id" bson:"_id"`
	BookingID  string    `json:"booking_id" bson:"booking_id"`
	ResourceID string    `json:"resource_id" bson:"resource_id"`
	StartTime  time.Time `json:"start_time" bson:"start_time"`
	EndTime    time.Time `json:"end_time" bson:"end_time"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	Source     string    `json:"source" bson:"source"`
}

func (r MirrorRecord) Interval() Interval {
	return Interval{Start: r.StartTime, End: r.EndTime}
}
