package schedule

import (
	"context"
	"time"
)

// Repository persists ScheduledReport rows.
type Repository interface {
	// Upsert updates scheduled_time and updated_at of an existing (observer, child) row, or
	// inserts a new active row. Implementations must keep at most one row per pair.
	Upsert(ctx context.Context, observerID, childID string, at TimeOfDay, now time.Time) (*ScheduledReport, error)
	Get(ctx context.Context, observerID, childID string) (*ScheduledReport, error)
	SetActive(ctx context.Context, observerID, childID string, active bool, now time.Time) error
	Delete(ctx context.Context, observerID, childID string) error

	// ListActiveByObserver joins child metadata for display.
	ListActiveByObserver(ctx context.Context, observerID string) ([]*ScheduledReport, error)
	ListActive(ctx context.Context) ([]*ScheduledReport, error)
}
