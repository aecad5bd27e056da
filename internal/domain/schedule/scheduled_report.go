package schedule

import (
	"errors"
	"time"

	"learning_observer/internal/domain/directory"
)

// ErrNotFound is returned when no schedule exists for an (observer, child) pair.
var ErrNotFound = errors.New("scheduled report not found")

// ScheduledReport is one recurring daily time at which an observer reports on a child.
// Corresponds to the 'scheduled_reports' table; unique on (observer_id, child_id).
type ScheduledReport struct {
	ID            string
	ObserverID    string
	ChildID       string
	ScheduledTime TimeOfDay
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Child *directory.Child // populated by ListActiveByObserver only
}
