package credential

import (
	"context"
	"errors"
	"testing"
)

func TestEnrollAndVerify(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Enroll(ctx, "subject-1", "1234", false); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	if err := svc.Verify(ctx, "subject-1", "1234"); err != nil {
		t.Fatalf("verify correct PIN: %v", err)
	}

	if err := svc.Verify(ctx, "subject-1", "0000"); !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN, got %v", err)
	}
}

func TestVerifyRejectsMalformedPIN(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Enroll(ctx, "subject-1", "1234", false); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	for _, pin := range []string{"", "12", "12a4", "1234567890123"} {
		if err := svc.Verify(ctx, "subject-1", pin); !errors.Is(err, ErrInvalidPIN) {
			t.Fatalf("pin %q: expected ErrInvalidPIN, got %v", pin, err)
		}
	}
}

func TestEnrollRejectsMalformedPIN(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	if _, err := svc.Enroll(context.Background(), "subject-1", "12ab", false); !errors.Is(err, ErrMalformedPIN) {
		t.Fatalf("expected ErrMalformedPIN, got %v", err)
	}
}

func TestVerifyUnknownSubject(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	if err := svc.Verify(context.Background(), "nobody", "1234"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChangePIN(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	if _, err := svc.Enroll(ctx, "subject-1", "1234", false); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	if err := svc.ChangePIN(ctx, "subject-1", "0000", "5678"); !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("expected ErrInvalidPIN for wrong current PIN, got %v", err)
	}

	if err := svc.ChangePIN(ctx, "subject-1", "1234", "5678"); err != nil {
		t.Fatalf("change pin: %v", err)
	}

	if err := svc.Verify(ctx, "subject-1", "1234"); !errors.Is(err, ErrInvalidPIN) {
		t.Fatalf("old PIN should no longer verify, got %v", err)
	}
	if err := svc.Verify(ctx, "subject-1", "5678"); err != nil {
		t.Fatalf("new PIN should verify: %v", err)
	}
}
