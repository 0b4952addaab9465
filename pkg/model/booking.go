package model

import (
	"time"
)

const (
	StatusTentative = "tentative"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// ActiveStatuses are the booking states that occupy capacity. Cancelled and
// completed bookings are kept for audit but never enter conflict checks.
var ActiveStatuses = []string{StatusTentative, StatusConfirmed}

type Booking struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty"`
	ResourceID      string    `json:"resource_id" bson:"resource_id" validate:"required,min=1,max=100"`
	PatientID       string    `json:"patient_id" bson:"patient_id" validate:"required,min=1,max=100"`
	StartTime       time.Time `json:"start_time" bson:"start_time" validate:"required"`
	EndTime         time.Time `json:"end_time" bson:"end_time" validate:"required,gtfield=StartTime"`
	DurationMinutes int       `json:"duration_minutes" bson:"duration_minutes" validate:"required,min=5,max=480"`
	Status          string    `json:"status" bson:"status" validate:"required,booking_status"`
	Reason          string    `json:"reason,omitempty" bson:"reason,omitempty" validate:"omitempty,max=500"`
	ExternalRef     string    `json:"external_ref,omitempty" bson:"external_ref,omitempty" validate:"omitempty,max=200"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

// Interval returns the booking's occupied span.
func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartTime, End: b.EndTime}
}

// IsActive reports whether the booking occupies capacity.
func (b *Booking) IsActive() bool {
	return b.Status == StatusTentative || b.Status == StatusConfirmed
}

// BookingResult is the outcome of a commit attempt. A conflict is a normal,
// expected result rather than an exceptional condition.
type BookingResult struct {
	Success   bool   `json:"success"`
	BookingID string `json:"booking_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Message   string `json:"message"`
}
