package audit

import "time"

// Profile identifies which identity an event pertains to.
const (
	ProfileReal   = "real"
	ProfileShadow = "shadow"
)

// Actions recorded by the authentication core. Entries are append-only; once
// written they are never updated or deleted.
const (
	ActionPINVerified       = "pin_verified"
	ActionPINFailed         = "pin_failed"
	ActionBiometricVerified = "biometric_verified"
	ActionShadowEnabled     = "shadow_mode_enabled"
	ActionShadowDisabled    = "shadow_mode_disabled"
	ActionSessionWarned     = "session_warned"
	ActionSessionExpired    = "session_expired"
	ActionSessionTerminated = "session_terminated"
	ActionSessionSuperseded = "session_superseded"
	ActionLockedBlocked     = "locked_attempt_blocked"
	ActionLockCreated       = "lock_created"
	ActionLockCleared       = "lock_cleared"
	ActionPINChanged        = "pin_changed"
)

// Entry is a single security-relevant event.
type Entry struct {
	ID        string         `json:"id"`
	SubjectID string         `json:"subject_id"`
	Action    string         `json:"action"`
	Profile   string         `json:"profile,omitempty"`
	Origin    string         `json:"origin,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter narrows audit history queries.
type Filter struct {
	Action string
	From   time.Time
	To     time.Time
	Limit  int
}
