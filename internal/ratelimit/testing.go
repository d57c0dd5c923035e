package ratelimit

import "time"

// SetClock is a test helper that replaces the limiter's clock.
func SetClock(l *Limiter, now func() time.Time) {
	l.now = now
}
