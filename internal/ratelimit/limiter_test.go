package ratelimit

import (
	"context"
	"testing"
	"time"
)

func testLimiter(t *testing.T) (*Limiter, *time.Time) {
	t.Helper()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(NewMemoryStore(), NewMemoryPolicyStore(), map[string]Policy{
		KindPIN:       {MaxAttempts: 5, Window: 15 * time.Minute, Lockout: 30 * time.Minute},
		KindBiometric: {MaxAttempts: 3, Window: 5 * time.Minute, Lockout: 15 * time.Minute},
	})
	SetClock(l, func() time.Time { return now })
	return l, &now
}

func TestCheckAllowsUnderThreshold(t *testing.T) {
	l, _ := testLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		dec, err := l.Check(ctx, "subject-1", KindPIN)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if !dec.Allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
		if err := l.Record(ctx, "subject-1", KindPIN, false); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	dec, err := l.Check(ctx, "subject-1", KindPIN)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !dec.Allowed || dec.Remaining != 1 {
		t.Fatalf("expected one attempt remaining, got %+v", dec)
	}
}

func TestWindowExceededEntersLockout(t *testing.T) {
	l, _ := testLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.Check(ctx, "subject-1", KindPIN); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if err := l.Record(ctx, "subject-1", KindPIN, false); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	dec, err := l.Check(ctx, "subject-1", KindPIN)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if dec.Allowed {
		t.Fatal("sixth attempt should be denied")
	}
	if dec.Reason != ReasonWindowExceeded {
		t.Fatalf("expected window_exceeded, got %s", dec.Reason)
	}

	// Once locked out, every further check denies with lockout metadata.
	dec, err = l.Check(ctx, "subject-1", KindPIN)
	if err != nil {
		t.Fatalf("check under lockout: %v", err)
	}
	if dec.Allowed || dec.Reason != ReasonLockout {
		t.Fatalf("expected lockout denial, got %+v", dec)
	}
	if dec.RetryAfter <= 0 || dec.RetryAfter > 30*time.Minute {
		t.Fatalf("unexpected retry-after %s", dec.RetryAfter)
	}
}

func TestSuccessDoesNotResetWindow(t *testing.T) {
	l, _ := testLimiter(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := l.Record(ctx, "subject-1", KindPIN, false); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := l.Record(ctx, "subject-1", KindPIN, true); err != nil {
		t.Fatalf("record success: %v", err)
	}

	dec, err := l.Check(ctx, "subject-1", KindPIN)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if dec.Allowed {
		t.Fatal("five recorded attempts should exhaust the window regardless of outcome")
	}
}

func TestLockoutExpiryClearsHistory(t *testing.T) {
	l, now := testLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = l.Record(ctx, "subject-1", KindPIN, false)
	}
	if dec, _ := l.Check(ctx, "subject-1", KindPIN); dec.Allowed {
		t.Fatal("expected lockout")
	}

	*now = now.Add(31 * time.Minute)

	dec, err := l.Check(ctx, "subject-1", KindPIN)
	if err != nil {
		t.Fatalf("check after lockout: %v", err)
	}
	if !dec.Allowed {
		t.Fatalf("lockout expired, attempt should be allowed: %+v", dec)
	}
	if dec.Remaining != 5 {
		t.Fatalf("window should be empty after lockout expiry, remaining = %d", dec.Remaining)
	}
}

func TestSubjectPolicyOverride(t *testing.T) {
	l, _ := testLimiter(t)
	ctx := context.Background()

	if err := l.SetPolicy(ctx, "subject-1", KindPIN, Policy{MaxAttempts: 2, Window: 15 * time.Minute, Lockout: 30 * time.Minute}); err != nil {
		t.Fatalf("set policy: %v", err)
	}

	_ = l.Record(ctx, "subject-1", KindPIN, false)
	_ = l.Record(ctx, "subject-1", KindPIN, false)

	if dec, _ := l.Check(ctx, "subject-1", KindPIN); dec.Allowed {
		t.Fatal("override of 2 attempts should deny the third")
	}

	// Other subjects still get the default.
	if dec, _ := l.Check(ctx, "subject-2", KindPIN); !dec.Allowed {
		t.Fatal("default policy should allow other subjects")
	}
}

func TestSetPolicyRejectsInvalid(t *testing.T) {
	l, _ := testLimiter(t)

	if err := l.SetPolicy(context.Background(), "subject-1", KindPIN, Policy{}); err == nil {
		t.Fatal("expected error for zero policy")
	}
}

func TestUnknownKind(t *testing.T) {
	l, _ := testLimiter(t)

	if _, err := l.Check(context.Background(), "subject-1", "face"); err == nil {
		t.Fatal("expected error for unknown action kind")
	}
}
