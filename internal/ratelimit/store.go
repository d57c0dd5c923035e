package ratelimit

import (
	"context"
	"time"
)

// AttemptStore tracks attempt timestamps and lockouts per (subject, kind).
// Entries older than the window are pruned lazily; implementations may discard
// them eagerly as long as Count over the window stays exact.
type AttemptStore interface {
	// Add records one attempt at the given instant. The window hints how long
	// the entry must be retained.
	Add(ctx context.Context, subjectID, kind string, at time.Time, window time.Duration) error
	// Count returns the number of attempts at or after since.
	Count(ctx context.Context, subjectID, kind string, since time.Time) (int, error)
	// LockoutUntil returns the active lockout deadline, or the zero time when
	// no lockout is stored.
	LockoutUntil(ctx context.Context, subjectID, kind string) (time.Time, error)
	// SetLockout stores a lockout deadline and clears the attempt window.
	SetLockout(ctx context.Context, subjectID, kind string, until time.Time) error
	// ClearLockout removes an expired or operator-cleared lockout.
	ClearLockout(ctx context.Context, subjectID, kind string) error
}

// PolicyStore holds per-subject policy overrides. Absent overrides fall back to
// the limiter's configured defaults; changes take effect on the next attempt.
type PolicyStore interface {
	Get(ctx context.Context, subjectID, kind string) (Policy, bool, error)
	Set(ctx context.Context, subjectID, kind string, policy Policy) error
	Delete(ctx context.Context, subjectID, kind string) error
}
