package credential

import "time"

// Credential holds a subject's hashed shadow-profile PIN. Replaced on PIN
// change, never deleted while the shadow profile exists.
type Credential struct {
	SubjectID         string
	PINHash           []byte
	BiometricEnrolled bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
