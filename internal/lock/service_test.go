package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veil-auth/veil_auth/internal/audit"
	"github.com/veil-auth/veil_auth/internal/logging"
	"github.com/veil-auth/veil_auth/internal/notification"
)

func testService(t *testing.T) (*Service, *audit.Recorder, *time.Time) {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	recorder := audit.NewRecorder(audit.NewMemoryStore(), logging.Discard())
	s := NewService(NewMemoryRepository(), recorder, notification.NewLoggerNotifier(logging.Discard()))
	SetClock(s, func() time.Time { return now })
	return s, recorder, &now
}

func lockAuditCount(t *testing.T, recorder *audit.Recorder, subjectID, action string) int {
	t.Helper()
	entries, err := recorder.Store().ListBySubject(context.Background(), subjectID, audit.Filter{Action: action})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	return len(entries)
}

func TestTimedLockActiveUntilExpiry(t *testing.T) {
	s, recorder, now := testService(t)
	ctx := context.Background()

	duration := time.Hour
	l, err := s.Lock(ctx, "subject-1", "suspicious activity", "op-1", &duration)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if l.LockedUntil == nil || !l.LockedUntil.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected lock until %s, got %+v", now.Add(time.Hour), l.LockedUntil)
	}

	_, active, err := s.Status(ctx, "subject-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !active {
		t.Fatal("expected lock active")
	}
	if n := lockAuditCount(t, recorder, "subject-1", audit.ActionLockCreated); n != 1 {
		t.Fatalf("expected 1 lock_created entry, got %d", n)
	}

	// Lazy expiry: the lapsed lock is cleared by the next read.
	*now = now.Add(61 * time.Minute)
	_, active, err = s.Status(ctx, "subject-1")
	if err != nil {
		t.Fatalf("status after expiry: %v", err)
	}
	if active {
		t.Fatal("expected lock expired")
	}
	if n := lockAuditCount(t, recorder, "subject-1", audit.ActionLockCleared); n != 1 {
		t.Fatalf("expected 1 lock_cleared entry, got %d", n)
	}
}

func TestPermanentLockNeverExpires(t *testing.T) {
	s, _, now := testService(t)
	ctx := context.Background()

	if _, err := s.Lock(ctx, "subject-1", "fraud review", "op-1", nil); err != nil {
		t.Fatalf("lock: %v", err)
	}

	*now = now.Add(24 * 365 * time.Hour)
	l, active, err := s.Status(ctx, "subject-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !active {
		t.Fatal("expected permanent lock still active")
	}
	if l.LockedUntil != nil {
		t.Fatalf("expected nil LockedUntil, got %s", l.LockedUntil)
	}
}

func TestUnlockClearsLock(t *testing.T) {
	s, recorder, _ := testService(t)
	ctx := context.Background()

	if _, err := s.Lock(ctx, "subject-1", "fraud review", "op-1", nil); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if err := s.Unlock(ctx, "subject-1"); err != nil {
		t.Fatalf("unlock: %v", err)
	}

	_, active, err := s.Status(ctx, "subject-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if active {
		t.Fatal("expected lock cleared")
	}
	if n := lockAuditCount(t, recorder, "subject-1", audit.ActionLockCleared); n != 1 {
		t.Fatalf("expected 1 lock_cleared entry, got %d", n)
	}
}

func TestUnlockWithoutLock(t *testing.T) {
	s, _, _ := testService(t)

	if err := s.Unlock(context.Background(), "subject-1"); !errors.Is(err, ErrNoLock) {
		t.Fatalf("expected ErrNoLock, got %v", err)
	}
}

func TestStatusWithoutLock(t *testing.T) {
	s, _, _ := testService(t)

	_, active, err := s.Status(context.Background(), "subject-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if active {
		t.Fatal("expected no lock")
	}
}
