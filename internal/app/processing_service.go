package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"learning_observer/internal/domain/processing"
	"learning_observer/internal/domain/schedule"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultHistoryDays = 30

// ProcessingLog answers "was a report already produced today" for a (child, observer) pair.
// Days are calendar days in the scheduling zone.
type ProcessingLog struct {
	repo   processing.Repository
	loc    *time.Location
	now    Clock
	logger *logrus.Entry
}

func NewProcessingLog(repo processing.Repository, loc *time.Location, now Clock, logger *logrus.Entry) *ProcessingLog {
	if now == nil {
		now = systemClock
	}
	return &ProcessingLog{
		repo:   repo,
		loc:    loc,
		now:    now,
		logger: logger.WithField("component", "processing_log"),
	}
}

func (p *ProcessingLog) localNow() time.Time {
	return p.now().In(p.loc)
}

func (p *ProcessingLog) HasProcessedToday(ctx context.Context, childID, observerID string) (bool, error) {
	start, end := schedule.DayBounds(p.localNow())
	ok, err := p.repo.ExistsBetween(ctx, childID, observerID, start, end)
	if err != nil {
		return false, fmt.Errorf("failed to check processing log: %w", err)
	}
	return ok, nil
}

// LogProcessing appends one entry. Call it only after the observation is durably saved.
func (p *ProcessingLog) LogProcessing(ctx context.Context, childID, observerID, observationID string, reportType processing.ReportType) (*processing.LogEntry, error) {
	if childID == "" {
		return nil, &ValidationError{Field: "child_id", Reason: "is required"}
	}
	if observerID == "" {
		return nil, &ValidationError{Field: "observer_id", Reason: "is required"}
	}
	if !reportType.Valid() {
		return nil, &ValidationError{Field: "report_type", Reason: "must be scheduled or manual"}
	}

	entry := &processing.LogEntry{
		ID:          uuid.NewString(),
		ChildID:     childID,
		ObserverID:  observerID,
		ReportType:  reportType,
		ProcessedAt: p.localNow(),
	}
	if observationID != "" {
		entry.ObservationID = sql.NullString{String: observationID, Valid: true}
	}

	if err := p.repo.Append(ctx, entry); err != nil {
		if errors.Is(err, processing.ErrDuplicateEntry) {
			return nil, &ConflictError{Entity: "processing log entry", Key: childID + "/" + observerID, Err: err}
		}
		return nil, fmt.Errorf("failed to append processing log entry: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"child_id":    childID,
		"observer_id": observerID,
		"report_type": reportType,
	}).Debug("Processing logged")
	return entry, nil
}

// HistoryFor returns the last days of entries for the pair, newest first. days <= 0 means 30.
func (p *ProcessingLog) HistoryFor(ctx context.Context, childID, observerID string, days int) ([]*processing.LogEntry, error) {
	if days <= 0 {
		days = DefaultHistoryDays
	}
	since := p.localNow().AddDate(0, 0, -days)
	entries, err := p.repo.ListSince(ctx, childID, observerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing history: %w", err)
	}
	return entries, nil
}
