package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	lockouts map[string]time.Time
}

// NewMemoryStore builds an in-memory attempt store for testing.
func NewMemoryStore() AttemptStore {
	return &memoryStore{
		attempts: make(map[string][]time.Time),
		lockouts: make(map[string]time.Time),
	}
}

func attemptKey(subjectID, kind string) string {
	return subjectID + ":" + kind
}

func (s *memoryStore) Add(_ context.Context, subjectID, kind string, at time.Time, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(subjectID, kind)
	kept := s.attempts[key][:0]
	cutoff := at.Add(-window)
	for _, t := range s.attempts[key] {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	s.attempts[key] = append(kept, at)
	return nil
}

func (s *memoryStore) Count(_ context.Context, subjectID, kind string, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, t := range s.attempts[attemptKey(subjectID, kind)] {
		if !t.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) LockoutUntil(_ context.Context, subjectID, kind string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockouts[attemptKey(subjectID, kind)], nil
}

func (s *memoryStore) SetLockout(_ context.Context, subjectID, kind string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := attemptKey(subjectID, kind)
	s.lockouts[key] = until
	delete(s.attempts, key)
	return nil
}

func (s *memoryStore) ClearLockout(_ context.Context, subjectID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lockouts, attemptKey(subjectID, kind))
	return nil
}
