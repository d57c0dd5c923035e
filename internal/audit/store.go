package audit

import (
	"context"
	"time"
)

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListBySubject(ctx context.Context, subjectID string, filter Filter) ([]Entry, error)
	// Recent returns all entries written at or after the given instant, oldest
	// first. Input for periodic anomaly scans.
	Recent(ctx context.Context, since time.Time) ([]Entry, error)
}
