package processing

import (
	"context"
	"time"
)

// Repository is the append-only processing log.
type Repository interface {
	Append(ctx context.Context, entry *LogEntry) error
	// ExistsBetween reports whether an entry for the pair has processed_at in [from, to).
	ExistsBetween(ctx context.Context, childID, observerID string, from, to time.Time) (bool, error)
	// ListSince returns entries with processed_at >= since, newest first.
	ListSince(ctx context.Context, childID, observerID string, since time.Time) ([]*LogEntry, error)
}
