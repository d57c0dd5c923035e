package session

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]Session // keyed by session ID
	current  map[string]string  // subject ID -> most recent session ID
}

// NewMemoryRepository builds an in-memory session store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		sessions: make(map[string]Session),
		current:  make(map[string]string),
	}
}

func (r *memoryRepository) Save(_ context.Context, sess Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sess.ID] = sess
	if cur, ok := r.current[sess.SubjectID]; !ok || cur == sess.ID || !r.sessions[cur].StartedAt.After(sess.StartedAt) {
		r.current[sess.SubjectID] = sess.ID
	}
	return nil
}

func (r *memoryRepository) FindCurrent(_ context.Context, subjectID string) (Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.current[subjectID]
	if !ok {
		return Session{}, ErrNotFound
	}
	return r.sessions[id], nil
}

func (r *memoryRepository) ListLive(_ context.Context) ([]Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Session
	for _, sess := range r.sessions {
		if sess.Live() {
			out = append(out, sess)
		}
	}
	return out, nil
}
