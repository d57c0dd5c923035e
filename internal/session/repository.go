package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no session exists for the subject.
	ErrNotFound = errors.New("session not found")
	// ErrExpired indicates the session's timeout has elapsed.
	ErrExpired = errors.New("session expired")
)

// Repository persists sessions.
type Repository interface {
	Save(ctx context.Context, sess Session) error
	// FindCurrent returns the subject's most recent session regardless of
	// status, or ErrNotFound.
	FindCurrent(ctx context.Context, subjectID string) (Session, error)
	// ListLive returns every active or warned session. Input for the sweep.
	ListLive(ctx context.Context) ([]Session, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed session repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save inserts or replaces a session row.
func (r *PostgresRepository) Save(ctx context.Context, sess Session) error {
	sessID, err := uuid.Parse(sess.ID)
	if err != nil {
		return err
	}
	var endedAt *time.Time
	if sess.EndedAt != nil {
		t := sess.EndedAt.UTC()
		endedAt = &t
	}
	_, err = r.db.Exec(ctx, `INSERT INTO sessions (id, subject_id, profile, status, started_at, last_activity_at, expires_at, ended_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE SET status = $4, last_activity_at = $6, expires_at = $7, ended_at = $8`,
		sessID, sess.SubjectID, sess.Profile, sess.Status,
		sess.StartedAt.UTC(), sess.LastActivityAt.UTC(), sess.ExpiresAt.UTC(), endedAt)
	return err
}

// FindCurrent fetches the subject's most recent session.
func (r *PostgresRepository) FindCurrent(ctx context.Context, subjectID string) (Session, error) {
	row := r.db.QueryRow(ctx, `SELECT id, subject_id, profile, status, started_at, last_activity_at, expires_at, ended_at
        FROM sessions WHERE subject_id = $1 ORDER BY started_at DESC LIMIT 1`, subjectID)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return sess, nil
}

// ListLive returns all active or warned sessions.
func (r *PostgresRepository) ListLive(ctx context.Context) ([]Session, error) {
	rows, err := r.db.Query(ctx, `SELECT id, subject_id, profile, status, started_at, last_activity_at, expires_at, ended_at
        FROM sessions WHERE status = $1 OR status = $2`, StatusActive, StatusWarned)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func scanSession(row pgx.Row) (Session, error) {
	var (
		id             uuid.UUID
		sess           Session
		startedAt      time.Time
		lastActivityAt time.Time
		expiresAt      time.Time
		endedAt        *time.Time
	)
	if err := row.Scan(&id, &sess.SubjectID, &sess.Profile, &sess.Status, &startedAt, &lastActivityAt, &expiresAt, &endedAt); err != nil {
		return Session{}, err
	}
	sess.ID = id.String()
	sess.StartedAt = startedAt.UTC()
	sess.LastActivityAt = lastActivityAt.UTC()
	sess.ExpiresAt = expiresAt.UTC()
	if endedAt != nil {
		t := endedAt.UTC()
		sess.EndedAt = &t
	}
	return sess, nil
}
