package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veil-auth/veil_auth/internal/audit"
	"github.com/veil-auth/veil_auth/internal/logging"
)

func testManager(t *testing.T) (*Manager, *audit.Recorder, *time.Time) {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	recorder := audit.NewRecorder(audit.NewMemoryStore(), logging.Discard())
	m := NewManager(NewMemoryRepository(), recorder, 30*time.Minute, 5*time.Minute)
	SetClock(m, func() time.Time { return now })
	return m, recorder, &now
}

func auditCount(t *testing.T, recorder *audit.Recorder, subjectID, action string) int {
	t.Helper()
	entries, err := recorder.Store().ListBySubject(context.Background(), subjectID, audit.Filter{Action: action})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	return len(entries)
}

func TestOpenCreatesActiveSession(t *testing.T) {
	m, _, now := testManager(t)
	ctx := context.Background()

	sess, err := m.Open(ctx, "subject-1", ProfileShadow)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sess.Status != StatusActive {
		t.Fatalf("expected active, got %s", sess.Status)
	}
	if !sess.ExpiresAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("expected expiry at timeout, got %s", sess.ExpiresAt)
	}
}

func TestOpenSupersedesLiveSession(t *testing.T) {
	m, recorder, _ := testManager(t)
	ctx := context.Background()

	first, err := m.Open(ctx, "subject-1", ProfileShadow)
	if err != nil {
		t.Fatalf("open first: %v", err)
	}
	second, err := m.Open(ctx, "subject-1", ProfileShadow)
	if err != nil {
		t.Fatalf("open second: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected a fresh session")
	}
	cur, err := m.Status(ctx, "subject-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if cur.ID != second.ID || cur.Status != StatusActive {
		t.Fatalf("expected second session live, got %s/%s", cur.ID, cur.Status)
	}
	if n := auditCount(t, recorder, "subject-1", audit.ActionSessionSuperseded); n != 1 {
		t.Fatalf("expected 1 superseded entry, got %d", n)
	}
}

func TestWarnThenExpire(t *testing.T) {
	m, recorder, now := testManager(t)
	ctx := context.Background()

	if _, err := m.Open(ctx, "subject-1", ProfileShadow); err != nil {
		t.Fatalf("open: %v", err)
	}

	// 26 minutes idle falls inside the warning window.
	*now = now.Add(26 * time.Minute)
	sess, err := m.Status(ctx, "subject-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if sess.Status != StatusWarned {
		t.Fatalf("expected warned, got %s", sess.Status)
	}
	if n := auditCount(t, recorder, "subject-1", audit.ActionSessionWarned); n != 1 {
		t.Fatalf("expected 1 warned entry, got %d", n)
	}

	// A repeated status check must not warn again.
	if _, err := m.Status(ctx, "subject-1"); err != nil {
		t.Fatalf("status: %v", err)
	}
	if n := auditCount(t, recorder, "subject-1", audit.ActionSessionWarned); n != 1 {
		t.Fatalf("warned entry duplicated, got %d", n)
	}

	*now = now.Add(5 * time.Minute)
	sess, err = m.Status(ctx, "subject-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if sess.Status != StatusExpired {
		t.Fatalf("expected expired, got %s", sess.Status)
	}
	if n := auditCount(t, recorder, "subject-1", audit.ActionSessionExpired); n != 1 {
		t.Fatalf("expected 1 expired entry, got %d", n)
	}
	// Timing out a shadow session also records the implicit profile change.
	if n := auditCount(t, recorder, "subject-1", audit.ActionShadowDisabled); n != 1 {
		t.Fatalf("expected 1 shadow disabled entry, got %d", n)
	}
}

func TestTouchResetsInactivityClock(t *testing.T) {
	m, _, now := testManager(t)
	ctx := context.Background()

	if _, err := m.Open(ctx, "subject-1", ProfileShadow); err != nil {
		t.Fatalf("open: %v", err)
	}

	*now = now.Add(26 * time.Minute)
	if _, err := m.Status(ctx, "subject-1"); err != nil {
		t.Fatalf("status: %v", err)
	}
	sess, err := m.Touch(ctx, "subject-1")
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if sess.Status != StatusActive {
		t.Fatalf("expected warning cleared, got %s", sess.Status)
	}
	if !sess.ExpiresAt.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("expected expiry pushed out, got %s", sess.ExpiresAt)
	}

	// The full timeout applies again from the touch.
	*now = now.Add(29 * time.Minute)
	sess, err = m.Status(ctx, "subject-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if sess.Status != StatusWarned {
		t.Fatalf("expected warned, got %s", sess.Status)
	}
}

func TestTouchAfterTimeoutExpires(t *testing.T) {
	m, recorder, now := testManager(t)
	ctx := context.Background()

	if _, err := m.Open(ctx, "subject-1", ProfileShadow); err != nil {
		t.Fatalf("open: %v", err)
	}

	*now = now.Add(31 * time.Minute)
	if _, err := m.Touch(ctx, "subject-1"); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if n := auditCount(t, recorder, "subject-1", audit.ActionSessionExpired); n != 1 {
		t.Fatalf("expected 1 expired entry, got %d", n)
	}
}

func TestTerminateEndsSession(t *testing.T) {
	m, recorder, _ := testManager(t)
	ctx := context.Background()

	if _, err := m.Open(ctx, "subject-1", ProfileShadow); err != nil {
		t.Fatalf("open: %v", err)
	}
	sess, err := m.Terminate(ctx, "subject-1", "user_disable")
	if err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if sess.Status != StatusTerminated || sess.EndedAt == nil {
		t.Fatalf("expected terminated with end time, got %+v", sess)
	}
	if n := auditCount(t, recorder, "subject-1", audit.ActionSessionTerminated); n != 1 {
		t.Fatalf("expected 1 terminated entry, got %d", n)
	}
	if _, err := m.Terminate(ctx, "subject-1", "user_disable"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second terminate, got %v", err)
	}
}

func TestCheckNowSweepsAllLiveSessions(t *testing.T) {
	m, recorder, now := testManager(t)
	ctx := context.Background()

	if _, err := m.Open(ctx, "subject-1", ProfileShadow); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := m.Open(ctx, "subject-2", ProfileReal); err != nil {
		t.Fatalf("open: %v", err)
	}

	*now = now.Add(31 * time.Minute)
	if err := m.CheckNow(ctx); err != nil {
		t.Fatalf("check now: %v", err)
	}

	for _, subject := range []string{"subject-1", "subject-2"} {
		if n := auditCount(t, recorder, subject, audit.ActionSessionExpired); n != 1 {
			t.Fatalf("expected %s expired once, got %d", subject, n)
		}
	}
	// Only the shadow session records a profile change.
	if n := auditCount(t, recorder, "subject-2", audit.ActionShadowDisabled); n != 0 {
		t.Fatalf("real-profile session should not disable shadow mode, got %d", n)
	}
}

func TestActiveReportsNoSession(t *testing.T) {
	m, _, _ := testManager(t)

	_, live, err := m.Active(context.Background(), "subject-1")
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if live {
		t.Fatal("expected no live session")
	}
}
