package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Limiter decides whether an authentication attempt may proceed and records
// every attempt against the sliding window. A successful outcome does not reset
// the window; only lockout expiry clears history.
type Limiter struct {
	attempts AttemptStore
	policies PolicyStore
	defaults map[string]Policy
	now      func() time.Time
}

// NewLimiter builds a limiter over the given stores with per-kind defaults.
func NewLimiter(attempts AttemptStore, policies PolicyStore, defaults map[string]Policy) *Limiter {
	return &Limiter{attempts: attempts, policies: policies, defaults: defaults, now: time.Now}
}

// Check reports whether an attempt for (subject, kind) is currently permitted.
// Any store failure denies the attempt: an authentication decision built on
// unknown rate-limit state must fail closed.
func (l *Limiter) Check(ctx context.Context, subjectID, kind string) (Decision, error) {
	now := l.now().UTC()

	until, err := l.attempts.LockoutUntil(ctx, subjectID, kind)
	if err != nil {
		return Decision{Reason: ReasonLockout}, fmt.Errorf("read lockout state: %w", err)
	}
	if !until.IsZero() {
		if now.Before(until) {
			return Decision{Reason: ReasonLockout, RetryAfter: until.Sub(now)}, nil
		}
		// Lockout expired: clear it lazily. The window was emptied when the
		// lockout was set, so the subject starts from a clean slate.
		if err := l.attempts.ClearLockout(ctx, subjectID, kind); err != nil {
			return Decision{Reason: ReasonLockout}, fmt.Errorf("clear expired lockout: %w", err)
		}
	}

	policy, err := l.policyFor(ctx, subjectID, kind)
	if err != nil {
		return Decision{}, err
	}

	count, err := l.attempts.Count(ctx, subjectID, kind, now.Add(-policy.Window))
	if err != nil {
		return Decision{}, fmt.Errorf("count attempts: %w", err)
	}

	if count >= policy.MaxAttempts {
		lockUntil := now.Add(policy.Lockout)
		if err := l.attempts.SetLockout(ctx, subjectID, kind, lockUntil); err != nil {
			return Decision{Reason: ReasonWindowExceeded}, fmt.Errorf("set lockout: %w", err)
		}
		return Decision{Reason: ReasonWindowExceeded, RetryAfter: policy.Lockout}, nil
	}

	return Decision{Allowed: true, Remaining: policy.MaxAttempts - count}, nil
}

// Record registers an attempt. Failed and successful attempts both count toward
// the window threshold, so the outcome only matters to the audit trail.
func (l *Limiter) Record(ctx context.Context, subjectID, kind string, _ bool) error {
	policy, err := l.policyFor(ctx, subjectID, kind)
	if err != nil {
		return err
	}
	return l.attempts.Add(ctx, subjectID, kind, l.now().UTC(), policy.Window)
}

// Policy returns the effective policy for (subject, kind).
func (l *Limiter) Policy(ctx context.Context, subjectID, kind string) (Policy, error) {
	return l.policyFor(ctx, subjectID, kind)
}

// SetPolicy installs a per-subject override, effective on the next attempt.
func (l *Limiter) SetPolicy(ctx context.Context, subjectID, kind string, policy Policy) error {
	if policy.MaxAttempts <= 0 || policy.Window <= 0 || policy.Lockout <= 0 {
		return fmt.Errorf("policy values must be positive")
	}
	return l.policies.Set(ctx, subjectID, kind, policy)
}

// ClearPolicy removes a per-subject override, restoring the global default.
func (l *Limiter) ClearPolicy(ctx context.Context, subjectID, kind string) error {
	return l.policies.Delete(ctx, subjectID, kind)
}

func (l *Limiter) policyFor(ctx context.Context, subjectID, kind string) (Policy, error) {
	policy, ok, err := l.policies.Get(ctx, subjectID, kind)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	if ok {
		return policy, nil
	}
	policy, ok = l.defaults[kind]
	if !ok {
		return Policy{}, fmt.Errorf("no policy for action kind %q", kind)
	}
	return policy, nil
}
