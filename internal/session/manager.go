package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veil-auth/veil_auth/internal/audit"
)

// Manager owns the session lifecycle: creation, activity refresh, warning,
// expiry and forced termination. Exactly one session per subject is live at any
// time; timeout transitions and explicit termination for the same subject are
// serialized by a per-subject mutex.
type Manager struct {
	repo          Repository
	recorder      *audit.Recorder
	timeout       time.Duration
	warningWindow time.Duration
	now           func() time.Time

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewManager builds a session manager.
func NewManager(repo Repository, recorder *audit.Recorder, timeout, warningWindow time.Duration) *Manager {
	return &Manager{
		repo:          repo,
		recorder:      recorder,
		timeout:       timeout,
		warningWindow: warningWindow,
		now:           time.Now,
		locks:         make(map[string]*sync.Mutex),
	}
}

func (m *Manager) subjectLock(subjectID string) *sync.Mutex {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()
	mu, ok := m.locks[subjectID]
	if !ok {
		mu = &sync.Mutex{}
		m.locks[subjectID] = mu
	}
	return mu
}

// Open creates an active session for the subject. An existing live session is
// terminated first and recorded as superseded, never silently dropped.
func (m *Manager) Open(ctx context.Context, subjectID, profile string) (Session, error) {
	mu := m.subjectLock(subjectID)
	mu.Lock()
	defer mu.Unlock()

	now := m.now().UTC()

	if cur, err := m.repo.FindCurrent(ctx, subjectID); err == nil && cur.Live() {
		cur.Status = StatusTerminated
		cur.EndedAt = &now
		if err := m.repo.Save(ctx, cur); err != nil {
			return Session{}, err
		}
		m.recorder.Record(ctx, audit.Entry{
			SubjectID: subjectID,
			Action:    audit.ActionSessionSuperseded,
			Profile:   cur.Profile,
			Metadata:  map[string]any{"session_id": cur.ID},
		})
	}

	sess := Session{
		ID:             uuid.NewString(),
		SubjectID:      subjectID,
		Profile:        profile,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(m.timeout),
	}
	if err := m.repo.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Touch records user activity: it resets the inactivity clock and clears a
// warning. Touching an already-timed-out session expires it and returns
// ErrExpired.
func (m *Manager) Touch(ctx context.Context, subjectID string) (Session, error) {
	mu := m.subjectLock(subjectID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := m.repo.FindCurrent(ctx, subjectID)
	if err != nil {
		return Session{}, err
	}
	if !sess.Live() {
		return Session{}, ErrNotFound
	}

	now := m.now().UTC()
	if elapsed := now.Sub(sess.LastActivityAt); elapsed >= m.timeout {
		if _, err := m.expire(ctx, sess, now); err != nil {
			return Session{}, err
		}
		return Session{}, ErrExpired
	}

	sess.Status = StatusActive
	sess.LastActivityAt = now
	sess.ExpiresAt = now.Add(m.timeout)
	if err := m.repo.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Status returns the subject's current session, lazily applying the warned and
// expired transitions that periodic sweeps would otherwise make.
func (m *Manager) Status(ctx context.Context, subjectID string) (Session, error) {
	mu := m.subjectLock(subjectID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := m.repo.FindCurrent(ctx, subjectID)
	if err != nil {
		return Session{}, err
	}
	if !sess.Live() {
		return sess, nil
	}
	return m.applyTimeout(ctx, sess, m.now().UTC())
}

// Active reports the live session for a subject, if any.
func (m *Manager) Active(ctx context.Context, subjectID string) (Session, bool, error) {
	sess, err := m.Status(ctx, subjectID)
	if err != nil {
		if err == ErrNotFound {
			return Session{}, false, nil
		}
		return Session{}, false, err
	}
	return sess, sess.Live(), nil
}

// Terminate explicitly ends a subject's live session.
func (m *Manager) Terminate(ctx context.Context, subjectID, reason string) (Session, error) {
	mu := m.subjectLock(subjectID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := m.repo.FindCurrent(ctx, subjectID)
	if err != nil {
		return Session{}, err
	}
	if !sess.Live() {
		return Session{}, ErrNotFound
	}

	now := m.now().UTC()
	sess.Status = StatusTerminated
	sess.EndedAt = &now
	if err := m.repo.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	m.recorder.Record(ctx, audit.Entry{
		SubjectID: subjectID,
		Action:    audit.ActionSessionTerminated,
		Profile:   sess.Profile,
		Metadata:  map[string]any{"session_id": sess.ID, "reason": reason},
	})
	return sess, nil
}

// CheckNow applies timeout transitions to every live session. Called by the
// periodic sweep and by out-of-band checks such as app foregrounding.
func (m *Manager) CheckNow(ctx context.Context) error {
	live, err := m.repo.ListLive(ctx)
	if err != nil {
		return err
	}
	for _, sess := range live {
		mu := m.subjectLock(sess.SubjectID)
		mu.Lock()
		// Re-read under the lock: an explicit terminate may have won the race.
		cur, err := m.repo.FindCurrent(ctx, sess.SubjectID)
		if err == nil && cur.ID == sess.ID && cur.Live() {
			_, err = m.applyTimeout(ctx, cur, m.now().UTC())
		}
		mu.Unlock()
		if err != nil && err != ErrNotFound {
			return err
		}
	}
	return nil
}

// applyTimeout moves a live session to warned or expired based on elapsed
// inactivity. Callers hold the subject lock.
func (m *Manager) applyTimeout(ctx context.Context, sess Session, now time.Time) (Session, error) {
	elapsed := now.Sub(sess.LastActivityAt)
	switch {
	case elapsed >= m.timeout:
		return m.expire(ctx, sess, now)
	case elapsed >= m.timeout-m.warningWindow && sess.Status == StatusActive:
		sess.Status = StatusWarned
		if err := m.repo.Save(ctx, sess); err != nil {
			return Session{}, err
		}
		m.recorder.Record(ctx, audit.Entry{
			SubjectID: sess.SubjectID,
			Action:    audit.ActionSessionWarned,
			Profile:   sess.Profile,
			Metadata:  map[string]any{"session_id": sess.ID, "expires_at": sess.ExpiresAt},
		})
	}
	return sess, nil
}

// expire ends a session by timeout. Expiry implicitly disables shadow mode, so
// both events land in the audit trail.
func (m *Manager) expire(ctx context.Context, sess Session, now time.Time) (Session, error) {
	sess.Status = StatusExpired
	sess.EndedAt = &now
	if err := m.repo.Save(ctx, sess); err != nil {
		return Session{}, err
	}
	m.recorder.Record(ctx, audit.Entry{
		SubjectID: sess.SubjectID,
		Action:    audit.ActionSessionExpired,
		Profile:   sess.Profile,
		Metadata:  map[string]any{"session_id": sess.ID},
	})
	if sess.Profile == ProfileShadow {
		m.recorder.Record(ctx, audit.Entry{
			SubjectID: sess.SubjectID,
			Action:    audit.ActionShadowDisabled,
			Profile:   sess.Profile,
			Metadata:  map[string]any{"session_id": sess.ID, "cause": "timeout"},
		})
	}
	return sess, nil
}
