package credential

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu    sync.RWMutex
	creds map[string]Credential
}

// NewMemoryRepository builds an in-memory credential store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{creds: make(map[string]Credential)}
}

func (r *memoryRepository) Upsert(_ context.Context, cred Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[cred.SubjectID] = cred
	return nil
}

func (r *memoryRepository) Find(_ context.Context, subjectID string) (Credential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cred, ok := r.creds[subjectID]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

func (r *memoryRepository) SetBiometric(_ context.Context, subjectID string, enrolled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[subjectID]
	if !ok {
		return ErrNotFound
	}
	cred.BiometricEnrolled = enrolled
	r.creds[subjectID] = cred
	return nil
}
