package lock

import "time"

// SetClock is a test helper that replaces the service's clock.
func SetClock(s *Service, now func() time.Time) {
	s.now = now
}
