package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	return NewRedisStore(cache), mr
}

func TestRedisStoreCountsWindow(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if err := store.Add(ctx, "subject-1", KindPIN, now.Add(time.Duration(i)*time.Second), 15*time.Minute); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	// An attempt older than the window must not count.
	if err := store.Add(ctx, "subject-1", KindPIN, now.Add(-20*time.Minute), 15*time.Minute); err != nil {
		t.Fatalf("add stale: %v", err)
	}

	n, err := store.Count(ctx, "subject-1", KindPIN, now.Add(-15*time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 attempts in window, got %d", n)
	}
}

func TestRedisStoreLockoutRoundTrip(t *testing.T) {
	store, mr := setupRedisStore(t)
	ctx := context.Background()
	until := time.Now().UTC().Add(30 * time.Minute)

	if err := store.Add(ctx, "subject-1", KindPIN, time.Now().UTC(), 15*time.Minute); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.SetLockout(ctx, "subject-1", KindPIN, until); err != nil {
		t.Fatalf("set lockout: %v", err)
	}

	got, err := store.LockoutUntil(ctx, "subject-1", KindPIN)
	if err != nil {
		t.Fatalf("lockout until: %v", err)
	}
	if !got.Equal(until) {
		t.Fatalf("expected %s got %s", until, got)
	}

	n, err := store.Count(ctx, "subject-1", KindPIN, time.Now().UTC().Add(-15*time.Minute))
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("window should be empty after lockout, got %d", n)
	}

	mr.FastForward(31 * time.Minute)
	got, err = store.LockoutUntil(ctx, "subject-1", KindPIN)
	if err != nil {
		t.Fatalf("lockout until after expiry: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected expired lockout, got %s", got)
	}
}

func TestRedisStoreClearLockout(t *testing.T) {
	store, _ := setupRedisStore(t)
	ctx := context.Background()

	if err := store.SetLockout(ctx, "subject-1", KindPIN, time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("set lockout: %v", err)
	}
	if err := store.ClearLockout(ctx, "subject-1", KindPIN); err != nil {
		t.Fatalf("clear lockout: %v", err)
	}

	got, err := store.LockoutUntil(ctx, "subject-1", KindPIN)
	if err != nil {
		t.Fatalf("lockout until: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("expected cleared lockout, got %s", got)
	}
}
