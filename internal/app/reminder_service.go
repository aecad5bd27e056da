package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"learning_observer/internal/domain/directory"
	"learning_observer/internal/domain/email"
	"learning_observer/internal/domain/observation"
	"learning_observer/internal/domain/schedule"
	"learning_observer/internal/infra/metrics"

	"github.com/sirupsen/logrus"
)

// Deduper grants a key at most once within its retention window.
type Deduper interface {
	AcquireOnce(ctx context.Context, key string) bool
}

type allowAll struct{}

func (allowAll) AcquireOnce(context.Context, string) bool { return true }

// TickReport counts what one reminder pass decided.
type TickReport struct {
	Checked    int
	InWindow   int
	Sent       int
	Suppressed int // an observation already exists today
	Duplicates int // another pass already claimed this occurrence
	Skipped    int // observer or child missing from the directory
	Failed     int
}

// ScheduleProbe is one row of the dispatcher status snapshot.
type ScheduleProbe struct {
	ScheduleID       string
	ObserverID       string
	ChildID          string
	ScheduledTime    schedule.TimeOfDay
	NextOccurrence   time.Time
	MinutesToSession float64
	InReminderWindow bool
}

// SchedulerSnapshot describes the dispatcher's view of the world at CurrentTime.
type SchedulerSnapshot struct {
	CurrentTime     time.Time
	Running         bool
	ActiveSchedules int
	Schedules       []ScheduleProbe
}

type ReminderService struct {
	schedules    schedule.Repository
	observations observation.Repository
	directory    directory.Repository
	mailer       email.Client
	dedup        Deduper
	loc          *time.Location
	now          Clock
	logger       *logrus.Entry
}

func NewReminderService(
	sr schedule.Repository,
	or observation.Repository,
	dr directory.Repository,
	mailer email.Client,
	loc *time.Location,
	now Clock,
	logger *logrus.Entry,
) *ReminderService {
	if now == nil {
		now = systemClock
	}
	return &ReminderService{
		schedules:    sr,
		observations: or,
		directory:    dr,
		mailer:       mailer,
		dedup:        allowAll{},
		loc:          loc,
		now:          now,
		logger:       logger.WithField("component", "reminder_service"),
	}
}

// WithDeduper makes every (observer, child, occurrence) reminder go out at most once.
func (s *ReminderService) WithDeduper(d Deduper) *ReminderService {
	if d != nil {
		s.dedup = d
	}
	return s
}

// Tick runs one reminder pass. Failures on a single schedule are logged and the pass continues;
// only a failure to list schedules is returned.
func (s *ReminderService) Tick(ctx context.Context) (TickReport, error) {
	started := time.Now()
	defer func() { metrics.ObserveReminderTick(time.Since(started)) }()

	var report TickReport
	now := s.now().In(s.loc)

	active, err := s.schedules.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active schedules: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"now":              now.Format(time.RFC3339),
		"active_schedules": len(active),
	}).Debug("Reminder pass started")

	for _, sr := range active {
		report.Checked++
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		next := schedule.NextOccurrence(sr.ScheduledTime, now)
		if !schedule.ShouldRemind(next, now) {
			continue
		}
		report.InWindow++
		outcome := s.remind(ctx, sr, next, now)
		metrics.IncrementReminder(outcome)
		switch outcome {
		case "sent":
			report.Sent++
		case "suppressed":
			report.Suppressed++
		case "duplicate":
			report.Duplicates++
		case "skipped":
			report.Skipped++
		default:
			report.Failed++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"checked":    report.Checked,
		"in_window":  report.InWindow,
		"sent":       report.Sent,
		"suppressed": report.Suppressed,
		"failed":     report.Failed,
	}).Info("Reminder pass finished")
	return report, nil
}

func (s *ReminderService) remind(ctx context.Context, sr *schedule.ScheduledReport, next, now time.Time) string {
	l := s.logger.WithFields(logrus.Fields{
		"schedule_id": sr.ID,
		"observer_id": sr.ObserverID,
		"child_id":    sr.ChildID,
		"session_at":  next.Format(time.RFC3339),
	})

	exists, err := s.observations.ExistsForDate(ctx, sr.ChildID, sr.ObserverID, now)
	if err != nil {
		l.WithError(err).Error("Failed to check today's observations")
		return "failed"
	}
	if exists {
		l.Debug("Observation already submitted today, reminder suppressed")
		return "suppressed"
	}

	observer, err := s.directory.GetUser(ctx, sr.ObserverID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			l.Warn("Observer not found, reminder skipped")
			return "skipped"
		}
		l.WithError(err).Error("Failed to load observer")
		return "failed"
	}
	child, err := s.directory.GetChild(ctx, sr.ChildID)
	if err != nil {
		if errors.Is(err, directory.ErrChildNotFound) {
			l.Warn("Child not found, reminder skipped")
			return "skipped"
		}
		l.WithError(err).Error("Failed to load child")
		return "failed"
	}
	if observer.Email == "" {
		l.Warn("Observer has no email address, reminder skipped")
		return "skipped"
	}

	key := fmt.Sprintf("reminder:%s:%s:%s", sr.ObserverID, sr.ChildID, next.Format(time.RFC3339))
	if !s.dedup.AcquireOnce(ctx, key) {
		l.Info("Reminder already sent for this session")
		return "duplicate"
	}

	subject, body := reminderMessage(child.Name, next)
	if err := s.mailer.SendEmail(ctx, observer.Email, subject, body); err != nil {
		extErr := &ExternalServiceError{Service: "email", Err: err}
		l.WithError(extErr).WithField("to", observer.Email).Error("Failed to send reminder")
		return "failed"
	}
	l.WithField("to", observer.Email).Info("Reminder sent")
	return "sent"
}

func reminderMessage(childName string, session time.Time) (string, string) {
	subject := fmt.Sprintf("Session Reminder: Observation for %s", childName)
	body := fmt.Sprintf(
		"Dear Observer,\n\n"+
			"This is a reminder: you have an upcoming observation session for %s scheduled at %s today.\n"+
			"Please submit your report after the session.\n\n"+
			"Thank you!",
		childName, session.Format("03:04 PM"),
	)
	return subject, body
}

// Snapshot reports every active schedule's distance to its next session. Running is left
// for the dispatcher to fill in.
func (s *ReminderService) Snapshot(ctx context.Context) (*SchedulerSnapshot, error) {
	now := s.now().In(s.loc)
	active, err := s.schedules.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active schedules: %w", err)
	}

	snap := &SchedulerSnapshot{
		CurrentTime:     now,
		ActiveSchedules: len(active),
		Schedules:       make([]ScheduleProbe, 0, len(active)),
	}
	for _, sr := range active {
		next := schedule.NextOccurrence(sr.ScheduledTime, now)
		snap.Schedules = append(snap.Schedules, ScheduleProbe{
			ScheduleID:       sr.ID,
			ObserverID:       sr.ObserverID,
			ChildID:          sr.ChildID,
			ScheduledTime:    sr.ScheduledTime,
			NextOccurrence:   next,
			MinutesToSession: next.Sub(now).Minutes(),
			InReminderWindow: schedule.ShouldRemind(next, now),
		})
	}
	return snap, nil
}
