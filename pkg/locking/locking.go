// Package locking provides the mutual-exclusion primitive serializing
// booking commits. Slot listing never takes a lock; only the commit path
// does, keyed by resource so unrelated calendars do not serialize.
package locking

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when the lock could not be acquired within the
// caller's wait budget. Callers are expected to retry with backoff.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Handle is a scoped hold on a lock. Release must be called exactly once,
// typically via defer.
type Handle interface {
	Release(ctx context.Context) error
}

// Provider hands out exclusive locks by key with a bounded wait.
// Implementations may back the lock by an in-process mutex (single-process
// deployments) or a shared store (multi-process deployments against the
// same ledger).
type Provider interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (Handle, error)
}
