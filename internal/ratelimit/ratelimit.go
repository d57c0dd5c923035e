package ratelimit

import (
	"errors"
	"time"
)

// Action kinds subject to rate limiting.
const (
	KindPIN       = "pin"
	KindBiometric = "biometric"
)

// Deny reasons carried on a Decision.
const (
	ReasonLockout        = "lockout"
	ReasonWindowExceeded = "window_exceeded"
)

// ErrLimited indicates the attempt was denied by the rate limiter.
var ErrLimited = errors.New("rate limited")

// Policy bounds attempts per (subject, action kind): at most MaxAttempts within
// a sliding Window; exceeding it enters a Lockout during which every attempt is
// denied regardless of window contents.
type Policy struct {
	MaxAttempts int           `json:"max_attempts"`
	Window      time.Duration `json:"window"`
	Lockout     time.Duration `json:"lockout"`
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	Remaining  int
	Reason     string
	RetryAfter time.Duration
}
