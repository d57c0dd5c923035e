package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type memoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

// NewMemoryPolicyStore builds an in-memory policy override store.
func NewMemoryPolicyStore() PolicyStore {
	return &memoryPolicyStore{policies: make(map[string]Policy)}
}

func (s *memoryPolicyStore) Get(_ context.Context, subjectID, kind string) (Policy, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[attemptKey(subjectID, kind)]
	return p, ok, nil
}

func (s *memoryPolicyStore) Set(_ context.Context, subjectID, kind string, policy Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[attemptKey(subjectID, kind)] = policy
	return nil
}

func (s *memoryPolicyStore) Delete(_ context.Context, subjectID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.policies, attemptKey(subjectID, kind))
	return nil
}

// PostgresPolicyStore persists per-subject policy overrides.
type PostgresPolicyStore struct {
	db *pgxpool.Pool
}

// NewPostgresPolicyStore builds a Postgres-backed policy store.
func NewPostgresPolicyStore(db *pgxpool.Pool) *PostgresPolicyStore {
	return &PostgresPolicyStore{db: db}
}

func (s *PostgresPolicyStore) Get(ctx context.Context, subjectID, kind string) (Policy, bool, error) {
	row := s.db.QueryRow(ctx, `SELECT max_attempts, window_seconds, lockout_seconds
        FROM rate_limit_policies WHERE subject_id = $1 AND kind = $2`, subjectID, kind)
	var (
		maxAttempts    int
		windowSeconds  int64
		lockoutSeconds int64
	)
	if err := row.Scan(&maxAttempts, &windowSeconds, &lockoutSeconds); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, false, nil
		}
		return Policy{}, false, err
	}
	return Policy{
		MaxAttempts: maxAttempts,
		Window:      time.Duration(windowSeconds) * time.Second,
		Lockout:     time.Duration(lockoutSeconds) * time.Second,
	}, true, nil
}

func (s *PostgresPolicyStore) Set(ctx context.Context, subjectID, kind string, policy Policy) error {
	_, err := s.db.Exec(ctx, `INSERT INTO rate_limit_policies (subject_id, kind, max_attempts, window_seconds, lockout_seconds)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (subject_id, kind) DO UPDATE SET max_attempts = $3, window_seconds = $4, lockout_seconds = $5`,
		subjectID, kind, policy.MaxAttempts, int64(policy.Window.Seconds()), int64(policy.Lockout.Seconds()))
	return err
}

func (s *PostgresPolicyStore) Delete(ctx context.Context, subjectID, kind string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM rate_limit_policies WHERE subject_id = $1 AND kind = $2`, subjectID, kind)
	return err
}
