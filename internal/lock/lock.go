package lock

import (
	"errors"
	"time"
)

// ErrLocked indicates an active user lock denies the operation. Not
// recoverable by the subject; requires operator action or expiry.
var ErrLocked = errors.New("subject is locked")

// UserLock is an out-of-band override that force-denies all attempts for a
// subject regardless of rate-limit state. A nil LockedUntil means permanent.
type UserLock struct {
	SubjectID   string
	Reason      string
	CreatedBy   string
	LockedAt    time.Time
	LockedUntil *time.Time
}

// Expired reports whether the lock has lapsed at the given instant.
func (l UserLock) Expired(now time.Time) bool {
	return l.LockedUntil != nil && !now.Before(*l.LockedUntil)
}
