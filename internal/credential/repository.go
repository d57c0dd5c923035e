package credential

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no shadow-profile credential exists for the subject.
var ErrNotFound = errors.New("credential not found")

// Repository persists credentials.
type Repository interface {
	Upsert(ctx context.Context, cred Credential) error
	Find(ctx context.Context, subjectID string) (Credential, error)
	SetBiometric(ctx context.Context, subjectID string, enrolled bool) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed credential repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts or replaces a subject's credential.
func (r *PostgresRepository) Upsert(ctx context.Context, cred Credential) error {
	_, err := r.db.Exec(ctx, `INSERT INTO credentials (subject_id, pin_hash, biometric_enrolled, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (subject_id) DO UPDATE SET pin_hash = $2, biometric_enrolled = $3, updated_at = $5`,
		cred.SubjectID, cred.PINHash, cred.BiometricEnrolled, cred.CreatedAt.UTC(), cred.UpdatedAt.UTC())
	return err
}

// Find fetches a subject's credential.
func (r *PostgresRepository) Find(ctx context.Context, subjectID string) (Credential, error) {
	row := r.db.QueryRow(ctx, `SELECT subject_id, pin_hash, biometric_enrolled, created_at, updated_at
        FROM credentials WHERE subject_id = $1`, subjectID)
	var (
		cred      Credential
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&cred.SubjectID, &cred.PINHash, &cred.BiometricEnrolled, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, err
	}
	cred.CreatedAt = createdAt.UTC()
	cred.UpdatedAt = updatedAt.UTC()
	return cred, nil
}

// SetBiometric toggles biometric enrollment.
func (r *PostgresRepository) SetBiometric(ctx context.Context, subjectID string, enrolled bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE credentials SET biometric_enrolled = $1, updated_at = now() WHERE subject_id = $2`,
		enrolled, subjectID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
