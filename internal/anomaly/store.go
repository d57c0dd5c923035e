package anomaly

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AlertStore persists alerts and answers the dedup question: has this
// (subject, rule, window) combination already been raised?
type AlertStore interface {
	Insert(ctx context.Context, alert Alert) error
	Exists(ctx context.Context, subjectID, rule string, windowStart time.Time) (bool, error)
	List(ctx context.Context, subjectID string) ([]Alert, error)
}

type dedupKey struct {
	subjectID   string
	rule        string
	windowStart int64
}

type memoryAlertStore struct {
	mu     sync.RWMutex
	alerts []Alert
	seen   map[dedupKey]bool
}

// NewMemoryAlertStore builds an in-memory alert store for testing.
func NewMemoryAlertStore() AlertStore {
	return &memoryAlertStore{seen: make(map[dedupKey]bool)}
}

func (s *memoryAlertStore) Insert(_ context.Context, alert Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, alert)
	s.seen[dedupKey{alert.SubjectID, alert.Rule, alert.WindowStart.UnixNano()}] = true
	return nil
}

func (s *memoryAlertStore) Exists(_ context.Context, subjectID, rule string, windowStart time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seen[dedupKey{subjectID, rule, windowStart.UnixNano()}], nil
}

func (s *memoryAlertStore) List(_ context.Context, subjectID string) ([]Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Alert
	for _, a := range s.alerts {
		if subjectID == "" || a.SubjectID == subjectID {
			out = append(out, a)
		}
	}
	return out, nil
}

// PostgresAlertStore implements AlertStore using PostgreSQL. A unique index on
// (subject_id, rule, window_start) backs the dedup guarantee.
type PostgresAlertStore struct {
	db *pgxpool.Pool
}

// NewPostgresAlertStore builds a Postgres-backed alert store.
func NewPostgresAlertStore(db *pgxpool.Pool) *PostgresAlertStore {
	return &PostgresAlertStore{db: db}
}

func (s *PostgresAlertStore) Insert(ctx context.Context, alert Alert) error {
	alertID, err := uuid.Parse(alert.ID)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(alert.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `INSERT INTO anomaly_alerts (id, subject_id, rule, severity, message, metadata, window_start, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (subject_id, rule, window_start) DO NOTHING`,
		alertID, alert.SubjectID, alert.Rule, alert.Severity, alert.Message, meta,
		alert.WindowStart.UTC(), alert.CreatedAt.UTC())
	return err
}

func (s *PostgresAlertStore) Exists(ctx context.Context, subjectID, rule string, windowStart time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM anomaly_alerts
        WHERE subject_id = $1 AND rule = $2 AND window_start = $3)`,
		subjectID, rule, windowStart.UTC()).Scan(&exists)
	return exists, err
}

func (s *PostgresAlertStore) List(ctx context.Context, subjectID string) ([]Alert, error) {
	query := `SELECT id, subject_id, rule, severity, message, metadata, window_start, created_at
        FROM anomaly_alerts`
	args := []any{}
	if subjectID != "" {
		query += ` WHERE subject_id = $1`
		args = append(args, subjectID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		var (
			id          uuid.UUID
			meta        []byte
			windowStart time.Time
			createdAt   time.Time
			a           Alert
		)
		if err := rows.Scan(&id, &a.SubjectID, &a.Rule, &a.Severity, &a.Message, &meta, &windowStart, &createdAt); err != nil {
			return nil, err
		}
		a.ID = id.String()
		a.WindowStart = windowStart.UTC()
		a.CreatedAt = createdAt.UTC()
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &a.Metadata); err != nil {
				return nil, err
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
