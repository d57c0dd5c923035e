package anomaly

import "time"

// SetClock is a test helper that replaces the detector's clock.
func SetClock(d *Detector, now func() time.Time) {
	d.now = now
}
