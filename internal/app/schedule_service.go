package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learning_observer/internal/domain/directory"
	"learning_observer/internal/domain/schedule"

	"github.com/sirupsen/logrus"
)

// ScheduleStatus is one dashboard row for an active schedule.
type ScheduleStatus struct {
	Child          *directory.Child
	Schedule       *schedule.ScheduledReport
	NextOccurrence time.Time
	ProcessedToday bool
	IsDue          bool
	CanProcess     bool
}

type ScheduleService struct {
	schedules schedule.Repository
	directory directory.Repository
	processed *ProcessingLog
	loc       *time.Location
	now       Clock
	logger    *logrus.Entry
}

func NewScheduleService(
	sr schedule.Repository,
	dr directory.Repository,
	pl *ProcessingLog,
	loc *time.Location,
	now Clock,
	logger *logrus.Entry,
) *ScheduleService {
	if now == nil {
		now = systemClock
	}
	return &ScheduleService{
		schedules: sr,
		directory: dr,
		processed: pl,
		loc:       loc,
		now:       now,
		logger:    logger.WithField("component", "schedule_service"),
	}
}

// SetSchedule creates or moves the daily time for (observer, child). New rows start active.
func (s *ScheduleService) SetSchedule(ctx context.Context, observerID, childID, at string) (*schedule.ScheduledReport, error) {
	tod, err := schedule.ParseTimeOfDay(at)
	if err != nil {
		return nil, &ValidationError{Field: "scheduled_time", Reason: "must be HH:MM with hour 0-23 and minute 0-59"}
	}
	if err := s.ensurePair(ctx, observerID, childID); err != nil {
		return nil, err
	}

	sr, err := s.schedules.Upsert(ctx, observerID, childID, tod, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to save schedule: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"observer_id":    observerID,
		"child_id":       childID,
		"scheduled_time": tod.String(),
	}).Info("Schedule saved")
	return sr, nil
}

// SetActive pauses or resumes a schedule without touching its time.
func (s *ScheduleService) SetActive(ctx context.Context, observerID, childID string, active bool) error {
	err := s.schedules.SetActive(ctx, observerID, childID, active, s.now())
	if err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			return &NotFoundError{Entity: "schedule", ID: observerID + "/" + childID}
		}
		return fmt.Errorf("failed to update schedule state: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"observer_id": observerID,
		"child_id":    childID,
		"is_active":   active,
	}).Info("Schedule state changed")
	return nil
}

func (s *ScheduleService) DeleteSchedule(ctx context.Context, observerID, childID string) error {
	err := s.schedules.Delete(ctx, observerID, childID)
	if err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			return &NotFoundError{Entity: "schedule", ID: observerID + "/" + childID}
		}
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"observer_id": observerID,
		"child_id":    childID,
	}).Info("Schedule deleted")
	return nil
}

// ListActiveFor returns the observer's active schedules with child metadata.
func (s *ScheduleService) ListActiveFor(ctx context.Context, observerID string) ([]*schedule.ScheduledReport, error) {
	list, err := s.schedules.ListActiveByObserver(ctx, observerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list active schedules: %w", err)
	}
	return list, nil
}

// ScheduleStatus evaluates every active schedule of the observer against the dashboard window.
func (s *ScheduleService) ScheduleStatus(ctx context.Context, observerID string) ([]ScheduleStatus, error) {
	list, err := s.ListActiveFor(ctx, observerID)
	if err != nil {
		return nil, err
	}

	now := s.now().In(s.loc)
	out := make([]ScheduleStatus, 0, len(list))
	for _, sr := range list {
		processed, err := s.processed.HasProcessedToday(ctx, sr.ChildID, observerID)
		if err != nil {
			return nil, err
		}
		next := schedule.NextOccurrence(sr.ScheduledTime, now)
		due := schedule.IsDue(next, now)
		out = append(out, ScheduleStatus{
			Child:          sr.Child,
			Schedule:       sr,
			NextOccurrence: next,
			ProcessedToday: processed,
			IsDue:          due,
			CanProcess:     due && !processed,
		})
	}
	return out, nil
}

// DueReports is ScheduleStatus narrowed to rows that can be processed now.
func (s *ScheduleService) DueReports(ctx context.Context, observerID string) ([]ScheduleStatus, error) {
	all, err := s.ScheduleStatus(ctx, observerID)
	if err != nil {
		return nil, err
	}
	due := make([]ScheduleStatus, 0, len(all))
	for _, st := range all {
		if st.CanProcess {
			due = append(due, st)
		}
	}
	return due, nil
}

// BeginScheduledReport checks that a scheduled report may start now and returns the child.
func (s *ScheduleService) BeginScheduledReport(ctx context.Context, observerID, childID string) (*directory.Child, error) {
	processed, err := s.processed.HasProcessedToday(ctx, childID, observerID)
	if err != nil {
		return nil, err
	}
	if processed {
		return nil, &ConflictError{Entity: "scheduled report", Key: childID + " today"}
	}

	child, err := s.directory.GetChild(ctx, childID)
	if err != nil {
		if errors.Is(err, directory.ErrChildNotFound) {
			return nil, &NotFoundError{Entity: "child", ID: childID}
		}
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	return child, nil
}

func (s *ScheduleService) ensurePair(ctx context.Context, observerID, childID string) error {
	if observerID == "" {
		return &ValidationError{Field: "observer_id", Reason: "is required"}
	}
	if childID == "" {
		return &ValidationError{Field: "child_id", Reason: "is required"}
	}
	if _, err := s.directory.GetUser(ctx, observerID); err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return &NotFoundError{Entity: "observer", ID: observerID}
		}
		return fmt.Errorf("failed to get observer: %w", err)
	}
	if _, err := s.directory.GetChild(ctx, childID); err != nil {
		if errors.Is(err, directory.ErrChildNotFound) {
			return &NotFoundError{Entity: "child", ID: childID}
		}
		return fmt.Errorf("failed to get child: %w", err)
	}
	return nil
}
