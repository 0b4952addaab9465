package model

import "time"

// BookingLock is an advisory lock document. Insertion into the locks
// collection with a duplicate _id means the lock is held by someone else.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
