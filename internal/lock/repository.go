package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoLock indicates no lock record exists for the subject.
var ErrNoLock = errors.New("no lock for subject")

// Repository persists user locks.
type Repository interface {
	Put(ctx context.Context, l UserLock) error
	Find(ctx context.Context, subjectID string) (UserLock, error)
	Delete(ctx context.Context, subjectID string) error
}

type memoryRepository struct {
	mu    sync.RWMutex
	locks map[string]UserLock
}

// NewMemoryRepository builds an in-memory lock store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{locks: make(map[string]UserLock)}
}

func (r *memoryRepository) Put(_ context.Context, l UserLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks[l.SubjectID] = l
	return nil
}

func (r *memoryRepository) Find(_ context.Context, subjectID string) (UserLock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.locks[subjectID]
	if !ok {
		return UserLock{}, ErrNoLock
	}
	return l, nil
}

func (r *memoryRepository) Delete(_ context.Context, subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, subjectID)
	return nil
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed lock repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Put(ctx context.Context, l UserLock) error {
	var until *time.Time
	if l.LockedUntil != nil {
		t := l.LockedUntil.UTC()
		until = &t
	}
	_, err := r.db.Exec(ctx, `INSERT INTO user_locks (subject_id, reason, created_by, locked_at, locked_until)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (subject_id) DO UPDATE SET reason = $2, created_by = $3, locked_at = $4, locked_until = $5`,
		l.SubjectID, l.Reason, l.CreatedBy, l.LockedAt.UTC(), until)
	return err
}

func (r *PostgresRepository) Find(ctx context.Context, subjectID string) (UserLock, error) {
	row := r.db.QueryRow(ctx, `SELECT subject_id, reason, created_by, locked_at, locked_until
        FROM user_locks WHERE subject_id = $1`, subjectID)
	var (
		l        UserLock
		lockedAt time.Time
		until    *time.Time
	)
	if err := row.Scan(&l.SubjectID, &l.Reason, &l.CreatedBy, &lockedAt, &until); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserLock{}, ErrNoLock
		}
		return UserLock{}, err
	}
	l.LockedAt = lockedAt.UTC()
	if until != nil {
		t := until.UTC()
		l.LockedUntil = &t
	}
	return l, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, subjectID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM user_locks WHERE subject_id = $1`, subjectID)
	return err
}
