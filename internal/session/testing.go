package session

import "time"

// SetClock is a test helper that replaces the manager's clock.
func SetClock(m *Manager, now func() time.Time) {
	m.now = now
}
