package lock

import (
	"context"
	"time"

	"github.com/veil-auth/veil_auth/internal/audit"
	"github.com/veil-auth/veil_auth/internal/notification"
)

// Service manages user locks with lazy expiry: an elapsed lock is cleared on
// the next read rather than by a background job.
type Service struct {
	repo     Repository
	recorder *audit.Recorder
	notifier notification.Notifier
	now      func() time.Time
}

// NewService creates a lock service.
func NewService(repo Repository, recorder *audit.Recorder, notifier notification.Notifier) *Service {
	return &Service{repo: repo, recorder: recorder, notifier: notifier, now: time.Now}
}

// Lock force-denies all attempts for the subject. A nil duration is permanent.
func (s *Service) Lock(ctx context.Context, subjectID, reason, createdBy string, duration *time.Duration) (UserLock, error) {
	now := s.now().UTC()
	l := UserLock{
		SubjectID: subjectID,
		Reason:    reason,
		CreatedBy: createdBy,
		LockedAt:  now,
	}
	if duration != nil {
		until := now.Add(*duration)
		l.LockedUntil = &until
	}
	if err := s.repo.Put(ctx, l); err != nil {
		return UserLock{}, err
	}
	s.recorder.Record(ctx, audit.Entry{
		SubjectID: subjectID,
		Action:    audit.ActionLockCreated,
		Metadata:  map[string]any{"reason": reason, "permanent": l.LockedUntil == nil},
	})
	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindLockoutNotice,
			Destination: subjectID,
			Body:        reason,
		})
	}
	return l, nil
}

// Unlock clears the subject's lock.
func (s *Service) Unlock(ctx context.Context, subjectID string) error {
	if _, err := s.repo.Find(ctx, subjectID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, subjectID); err != nil {
		return err
	}
	s.recorder.Record(ctx, audit.Entry{
		SubjectID: subjectID,
		Action:    audit.ActionLockCleared,
		Metadata:  map[string]any{"cleared_by": "operator"},
	})
	return nil
}

// Status reports the active lock for a subject, clearing it first if expired.
func (s *Service) Status(ctx context.Context, subjectID string) (UserLock, bool, error) {
	l, err := s.repo.Find(ctx, subjectID)
	if err != nil {
		if err == ErrNoLock {
			return UserLock{}, false, nil
		}
		return UserLock{}, false, err
	}
	if l.Expired(s.now().UTC()) {
		if err := s.repo.Delete(ctx, subjectID); err != nil {
			return UserLock{}, false, err
		}
		s.recorder.Record(ctx, audit.Entry{
			SubjectID: subjectID,
			Action:    audit.ActionLockCleared,
			Metadata:  map[string]any{"cleared_by": "expiry"},
		})
		return UserLock{}, false, nil
	}
	return l, true, nil
}
