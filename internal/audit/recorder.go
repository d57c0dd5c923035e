package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Recorder writes audit entries best-effort: a store failure must never block
// the authentication decision that produced the event. Failed writes are
// surfaced to operators through an error log carrying audit_write_failed.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewRecorder builds a Recorder over the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

// Record assigns an ID and timestamp and appends the entry.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now().UTC()
	}
	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.Error("audit_write_failed",
			slog.String("subject_id", entry.SubjectID),
			slog.String("action", entry.Action),
			slog.Any("error", err),
		)
		return
	}
	r.logger.Info("audit",
		slog.String("subject_id", entry.SubjectID),
		slog.String("action", entry.Action),
		slog.String("profile", entry.Profile),
	)
}

// Store exposes the underlying store for read paths (history queries, scans).
func (r *Recorder) Store() Store {
	return r.store
}
