package processing

import (
	"database/sql"
	"errors"
	"time"
)

// ErrDuplicateEntry is returned by stores running with strict idempotency when a second
// scheduled entry is appended for the same child, observer and day.
var ErrDuplicateEntry = errors.New("report already processed for this day")

// ReportType says how the observation was started.
type ReportType string

const (
	ReportTypeScheduled ReportType = "scheduled"
	ReportTypeManual    ReportType = "manual"
)

func (t ReportType) Valid() bool {
	return t == ReportTypeScheduled || t == ReportTypeManual
}

// LogEntry records that a report was produced for (child, observer) at ProcessedAt.
// Corresponds to the append-only 'report_processing_log' table.
type LogEntry struct {
	ID            string
	ChildID       string
	ObserverID    string
	ObservationID sql.NullString
	ReportType    ReportType
	ProcessedAt   time.Time // carries the scheduling zone; its calendar day is the guard key
}
