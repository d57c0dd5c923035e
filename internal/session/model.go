package session

import "time"

// Session statuses. A session moves absent -> active -> warned -> expired or
// terminated; expired and terminated are terminal.
const (
	StatusActive     = "active"
	StatusWarned     = "warned"
	StatusExpired    = "expired"
	StatusTerminated = "terminated"
)

// Profile kinds a session can grant.
const (
	ProfileReal   = "real"
	ProfileShadow = "shadow"
)

// Session is a time-bounded authenticated state granting access to a profile.
// ExpiresAt is always LastActivityAt + timeout.
type Session struct {
	ID             string
	SubjectID      string
	Profile        string
	Status         string
	StartedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	EndedAt        *time.Time
}

// Live reports whether the session still grants access.
func (s Session) Live() bool {
	return s.Status == StatusActive || s.Status == StatusWarned
}
