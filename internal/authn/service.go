package authn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/veil-auth/veil_auth/internal/audit"
	"github.com/veil-auth/veil_auth/internal/credential"
	"github.com/veil-auth/veil_auth/internal/lock"
	"github.com/veil-auth/veil_auth/internal/ratelimit"
	"github.com/veil-auth/veil_auth/internal/session"
)

// Service is the authentication root: it orchestrates the user lock, rate
// limiter, credential verifier, session manager and audit trail for every
// verify and toggle request. The check -> verify -> record -> log -> toggle
// sequence for one subject runs under a per-subject mutex so two concurrent
// requests cannot both observe "allowed".
type Service struct {
	creds    *credential.Service
	limiter  *ratelimit.Limiter
	sessions *session.Manager
	locks    *lock.Service
	recorder *audit.Recorder

	locksMu sync.Mutex
	inFly   map[string]*sync.Mutex
}

// NewService wires the authentication core together.
func NewService(creds *credential.Service, limiter *ratelimit.Limiter, sessions *session.Manager, locks *lock.Service, recorder *audit.Recorder) *Service {
	return &Service{
		creds:    creds,
		limiter:  limiter,
		sessions: sessions,
		locks:    locks,
		recorder: recorder,
		inFly:    make(map[string]*sync.Mutex),
	}
}

// ToggleInput carries one toggle request.
type ToggleInput struct {
	SubjectID         string
	PIN               string
	BiometricVerified bool
	Origin            string
}

// ToggleResult reports the shadow-mode state after a successful toggle.
type ToggleResult struct {
	Enabled bool
	Session session.Session
}

// Profile describes which identity a subject currently presents.
type Profile struct {
	SubjectID         string
	Active            string
	BiometricEnrolled bool
	SessionExpiresAt  string
}

func (s *Service) subjectMutex(subjectID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.inFly[subjectID]
	if !ok {
		mu = &sync.Mutex{}
		s.inFly[subjectID] = mu
	}
	return mu
}

// VerifyPIN checks a submitted PIN under lock and rate-limit control. Every
// outcome is audited; a rate-limit denial never reaches the verifier.
func (s *Service) VerifyPIN(ctx context.Context, subjectID, pin, origin string) error {
	mu := s.subjectMutex(subjectID)
	mu.Lock()
	defer mu.Unlock()
	return s.verifyPINLocked(ctx, subjectID, pin, origin)
}

func (s *Service) verifyPINLocked(ctx context.Context, subjectID, pin, origin string) error {
	if err := s.denyIfLocked(ctx, subjectID, origin); err != nil {
		return err
	}

	dec, err := s.limiter.Check(ctx, subjectID, ratelimit.KindPIN)
	if err != nil {
		// Unknown rate-limit state denies the attempt (fail closed).
		return fmt.Errorf("%w: %s", ratelimit.ErrLimited, err)
	}
	if !dec.Allowed {
		s.recorder.Record(ctx, audit.Entry{
			SubjectID: subjectID,
			Action:    audit.ActionPINFailed,
			Profile:   audit.ProfileShadow,
			Origin:    origin,
			Metadata:  map[string]any{"reason": dec.Reason, "retry_after_seconds": int(dec.RetryAfter.Seconds())},
		})
		return fmt.Errorf("%w: retry in %s", ratelimit.ErrLimited, dec.RetryAfter)
	}

	verifyErr := s.creds.Verify(ctx, subjectID, pin)
	if errors.Is(verifyErr, credential.ErrNotFound) {
		return verifyErr
	}

	if err := s.limiter.Record(ctx, subjectID, ratelimit.KindPIN, verifyErr == nil); err != nil {
		return fmt.Errorf("%w: %s", ratelimit.ErrLimited, err)
	}

	if verifyErr != nil {
		s.recorder.Record(ctx, audit.Entry{
			SubjectID: subjectID,
			Action:    audit.ActionPINFailed,
			Profile:   audit.ProfileShadow,
			Origin:    origin,
			Metadata:  map[string]any{"reason": "invalid_pin", "attempts_remaining": dec.Remaining - 1},
		})
		return credential.ErrInvalidPIN
	}

	s.recorder.Record(ctx, audit.Entry{
		SubjectID: subjectID,
		Action:    audit.ActionPINVerified,
		Profile:   audit.ProfileShadow,
		Origin:    origin,
		Metadata:  map[string]any{"biometricVerified": false},
	})
	return nil
}

// ChangePIN replaces the subject's PIN. The current PIN is verified under the
// same lock and rate-limit control as any other attempt.
func (s *Service) ChangePIN(ctx context.Context, subjectID, currentPIN, newPIN, origin string) error {
	mu := s.subjectMutex(subjectID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.verifyPINLocked(ctx, subjectID, currentPIN, origin); err != nil {
		return err
	}
	if err := s.creds.ChangePIN(ctx, subjectID, currentPIN, newPIN); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.Entry{
		SubjectID: subjectID,
		Action:    audit.ActionPINChanged,
		Profile:   audit.ProfileShadow,
		Origin:    origin,
	})
	return nil
}

// SetBiometric toggles biometric enrollment after verifying the PIN.
func (s *Service) SetBiometric(ctx context.Context, subjectID, pin string, enrolled bool, origin string) error {
	mu := s.subjectMutex(subjectID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.verifyPINLocked(ctx, subjectID, pin, origin); err != nil {
		return err
	}
	return s.creds.SetBiometric(ctx, subjectID, enrolled)
}

// ToggleShadowMode flips the subject's shadow session. A verified biometric
// bypasses both PIN verification and the rate limiter; the platform capability
// validated the biometric before this core is reached.
func (s *Service) ToggleShadowMode(ctx context.Context, in ToggleInput) (ToggleResult, error) {
	mu := s.subjectMutex(in.SubjectID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.denyIfLocked(ctx, in.SubjectID, in.Origin); err != nil {
		return ToggleResult{}, err
	}

	if in.BiometricVerified {
		s.recorder.Record(ctx, audit.Entry{
			SubjectID: in.SubjectID,
			Action:    audit.ActionBiometricVerified,
			Profile:   audit.ProfileShadow,
			Origin:    in.Origin,
			Metadata:  map[string]any{"biometricVerified": true},
		})
	} else if err := s.verifyPINLocked(ctx, in.SubjectID, in.PIN, in.Origin); err != nil {
		return ToggleResult{}, err
	}

	if cur, live, err := s.sessions.Active(ctx, in.SubjectID); err != nil {
		return ToggleResult{}, err
	} else if live && cur.Profile == session.ProfileShadow {
		if _, err := s.sessions.Terminate(ctx, in.SubjectID, "user_disable"); err != nil {
			return ToggleResult{}, err
		}
		s.recorder.Record(ctx, audit.Entry{
			SubjectID: in.SubjectID,
			Action:    audit.ActionShadowDisabled,
			Profile:   audit.ProfileShadow,
			Origin:    in.Origin,
			Metadata:  map[string]any{"biometricVerified": in.BiometricVerified},
		})
		return ToggleResult{Enabled: false, Session: cur}, nil
	}

	sess, err := s.sessions.Open(ctx, in.SubjectID, session.ProfileShadow)
	if err != nil {
		return ToggleResult{}, err
	}
	s.recorder.Record(ctx, audit.Entry{
		SubjectID: in.SubjectID,
		Action:    audit.ActionShadowEnabled,
		Profile:   audit.ProfileShadow,
		Origin:    in.Origin,
		Metadata:  map[string]any{"biometricVerified": in.BiometricVerified, "session_id": sess.ID},
	})
	return ToggleResult{Enabled: true, Session: sess}, nil
}

// CurrentProfile reports which identity the subject presents. Pure read: no
// authentication side effects beyond the session manager's lazy timeout.
func (s *Service) CurrentProfile(ctx context.Context, subjectID string) (Profile, error) {
	cred, err := s.creds.Get(ctx, subjectID)
	if err != nil {
		return Profile{}, err
	}

	profile := Profile{
		SubjectID:         subjectID,
		Active:            session.ProfileReal,
		BiometricEnrolled: cred.BiometricEnrolled,
	}
	sess, live, err := s.sessions.Active(ctx, subjectID)
	if err != nil {
		return Profile{}, err
	}
	if live && sess.Profile == session.ProfileShadow {
		profile.Active = session.ProfileShadow
		profile.SessionExpiresAt = sess.ExpiresAt.Format(time.RFC3339)
	}
	return profile, nil
}

// Refresh re-reads the subject's profile on demand. Replaces the source's
// implicit screen-focus polling with an explicit operation.
func (s *Service) Refresh(ctx context.Context, subjectID string) (Profile, error) {
	return s.CurrentProfile(ctx, subjectID)
}

// RecordActivity extends the subject's live session.
func (s *Service) RecordActivity(ctx context.Context, subjectID string) (session.Session, error) {
	return s.sessions.Touch(ctx, subjectID)
}

func (s *Service) denyIfLocked(ctx context.Context, subjectID, origin string) error {
	l, locked, err := s.locks.Status(ctx, subjectID)
	if err != nil {
		// Unknown lock state denies the attempt (fail closed).
		return fmt.Errorf("%w: %s", lock.ErrLocked, err)
	}
	if !locked {
		return nil
	}
	meta := map[string]any{"reason": l.Reason}
	if l.LockedUntil != nil {
		meta["locked_until"] = l.LockedUntil.Format(time.RFC3339)
	}
	s.recorder.Record(ctx, audit.Entry{
		SubjectID: subjectID,
		Action:    audit.ActionLockedBlocked,
		Profile:   audit.ProfileShadow,
		Origin:    origin,
		Metadata:  meta,
	})
	return lock.ErrLocked
}
