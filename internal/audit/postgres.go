package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists audit entries in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed audit store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts an entry. Entries are never updated or deleted.
func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	entryID, err := uuid.Parse(entry.ID)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO audit_entries (id, subject_id, action, profile, origin, metadata, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entryID, entry.SubjectID, entry.Action, entry.Profile, entry.Origin, meta, entry.CreatedAt.UTC())
	return err
}

// ListBySubject returns a subject's history matching the filter, oldest first.
func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID string, filter Filter) ([]Entry, error) {
	query := `SELECT id, subject_id, action, profile, origin, metadata, created_at
        FROM audit_entries WHERE subject_id = $1`
	args := []any{subjectID}
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += ` AND action = $` + itoa(len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From.UTC())
		query += ` AND created_at >= $` + itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To.UTC())
		query += ` AND created_at <= $` + itoa(len(args))
	}
	query += ` ORDER BY created_at ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + itoa(len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

// Recent returns all entries at or after the given instant, oldest first.
func (s *PostgresStore) Recent(ctx context.Context, since time.Time) ([]Entry, error) {
	rows, err := s.db.Query(ctx, `SELECT id, subject_id, action, profile, origin, metadata, created_at
        FROM audit_entries WHERE created_at >= $1 ORDER BY created_at ASC`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntries(rows)
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var out []Entry
	for rows.Next() {
		var (
			id        uuid.UUID
			meta      []byte
			createdAt time.Time
			e         Entry
		)
		if err := rows.Scan(&id, &e.SubjectID, &e.Action, &e.Profile, &e.Origin, &meta, &createdAt); err != nil {
			return nil, err
		}
		e.ID = id.String()
		e.CreatedAt = createdAt.UTC()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
