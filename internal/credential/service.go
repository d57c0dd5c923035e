package credential

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	minPINLength = 4
	maxPINLength = 12
)

var (
	// ErrInvalidPIN indicates the submitted PIN does not match the stored hash.
	ErrInvalidPIN = errors.New("invalid PIN")
	// ErrMalformedPIN indicates the PIN fails format requirements.
	ErrMalformedPIN = errors.New("PIN must be 4-12 digits")
)

// Service owns credential verification. It performs no logging and no rate
// limiting; callers are responsible for both.
type Service struct {
	repo Repository
}

// NewService creates a new credential service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Enroll creates the shadow-profile credential for a subject.
func (s *Service) Enroll(ctx context.Context, subjectID, pin string, biometric bool) (Credential, error) {
	if !validPIN(pin) {
		return Credential{}, ErrMalformedPIN
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return Credential{}, err
	}

	now := time.Now().UTC()
	cred := Credential{
		SubjectID:         subjectID,
		PINHash:           hash,
		BiometricEnrolled: biometric,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Upsert(ctx, cred); err != nil {
		return Credential{}, err
	}

	return cred, nil
}

// ChangePIN replaces the stored hash after verifying the current PIN.
func (s *Service) ChangePIN(ctx context.Context, subjectID, currentPIN, newPIN string) error {
	if !validPIN(newPIN) {
		return ErrMalformedPIN
	}
	cred, err := s.repo.Find(ctx, subjectID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(cred.PINHash, []byte(currentPIN)); err != nil {
		return ErrInvalidPIN
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	cred.PINHash = hash
	cred.UpdatedAt = time.Now().UTC()
	return s.repo.Upsert(ctx, cred)
}

// Verify compares a submitted PIN against the stored hash. An empty or
// malformed PIN never verifies.
func (s *Service) Verify(ctx context.Context, subjectID, pin string) error {
	if !validPIN(pin) {
		return ErrInvalidPIN
	}
	cred, err := s.repo.Find(ctx, subjectID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(cred.PINHash, []byte(pin)); err != nil {
		return ErrInvalidPIN
	}
	return nil
}

// Get fetches a subject's credential.
func (s *Service) Get(ctx context.Context, subjectID string) (Credential, error) {
	return s.repo.Find(ctx, subjectID)
}

// SetBiometric toggles biometric enrollment for a subject.
func (s *Service) SetBiometric(ctx context.Context, subjectID string, enrolled bool) error {
	return s.repo.SetBiometric(ctx, subjectID, enrolled)
}

func validPIN(pin string) bool {
	if len(pin) < minPINLength || len(pin) > maxPINLength {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
