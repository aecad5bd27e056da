package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"learning_observer/internal/app"
	"learning_observer/internal/domain/processing"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

const msgUnauthorized = "Error: you are not allowed to run this command."

// StatusSource reports the reminder dispatcher's live state.
type StatusSource interface {
	Status(ctx context.Context) (*app.SchedulerSnapshot, error)
}

// AdminDeps are the services the admin commands drive.
type AdminDeps struct {
	Schedules    *app.ScheduleService
	Reviews      *app.ReviewService
	Observations *app.ObservationService
	Processing   *app.ProcessingLog
	Scheduler    StatusSource
}

func exactly(n int) func(int) bool { return func(got int) bool { return got == n } }
func atLeast(n int) func(int) bool { return func(got int) bool { return got >= n } }

// RegisterAdminHandlers registers handlers for admin commands.
// Only adminTelegramID may run them.
func RegisterAdminHandlers(ctx context.Context, b *telebot.Bot, deps AdminDeps, adminTelegramID int64, baseLogger *logrus.Entry) {
	guard := func(name string, usage string, argsOK func(int) bool, fn func(c telebot.Context, l *logrus.Entry, args []string) error) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			handlerLogger := baseLogger.WithFields(logrus.Fields{
				"handler":   name,
				"sender_id": c.Sender().ID,
			})
			handlerLogger.Info("Command received")

			if c.Sender().ID != adminTelegramID {
				handlerLogger.Warn("Unauthorized access attempt")
				return c.Send(msgUnauthorized)
			}
			args := c.Args()
			if !argsOK(len(args)) {
				handlerLogger.WithField("args_count", len(args)).Warn("Invalid command format")
				return c.Send("Invalid command format. Use: " + usage)
			}
			return fn(c, handlerLogger, args)
		}
	}

	b.Handle("/set_schedule", guard("/set_schedule", "/set_schedule <observer_id> <child_id> <HH:MM>", exactly(3),
		func(c telebot.Context, l *logrus.Entry, args []string) error {
			l = l.WithFields(logrus.Fields{"observer_id": args[0], "child_id": args[1], "scheduled_time": args[2]})
			sr, err := deps.Schedules.SetSchedule(ctx, args[0], args[1], args[2])
			if err != nil {
				return c.Send(describeError(l, err, "Failed to save schedule"))
			}
			l.Info("Schedule saved")
			return c.Send(fmt.Sprintf("Schedule saved: child %s at %s (active: %t).", sr.ChildID, sr.ScheduledTime, sr.IsActive))
		}))

	toggle := func(active bool) func(c telebot.Context, l *logrus.Entry, args []string) error {
		return func(c telebot.Context, l *logrus.Entry, args []string) error {
			l = l.WithFields(logrus.Fields{"observer_id": args[0], "child_id": args[1], "is_active": active})
			if err := deps.Schedules.SetActive(ctx, args[0], args[1], active); err != nil {
				return c.Send(describeError(l, err, "Failed to update schedule"))
			}
			if active {
				return c.Send("Schedule resumed.")
			}
			return c.Send("Schedule paused.")
		}
	}
	b.Handle("/pause_schedule", guard("/pause_schedule", "/pause_schedule <observer_id> <child_id>", exactly(2), toggle(false)))
	b.Handle("/resume_schedule", guard("/resume_schedule", "/resume_schedule <observer_id> <child_id>", exactly(2), toggle(true)))

	b.Handle("/delete_schedule", guard("/delete_schedule", "/delete_schedule <observer_id> <child_id>", exactly(2),
		func(c telebot.Context, l *logrus.Entry, args []string) error {
			l = l.WithFields(logrus.Fields{"observer_id": args[0], "child_id": args[1]})
			if err := deps.Schedules.DeleteSchedule(ctx, args[0], args[1]); err != nil {
				return c.Send(describeError(l, err, "Failed to delete schedule"))
			}
			return c.Send("Schedule deleted.")
		}))

	b.Handle("/schedule_status", guard("/schedule_status", "/schedule_status <observer_id>", exactly(1),
		func(c telebot.Context, l *logrus.Entry, args []string) error {
			l = l.WithField("observer_id", args[0])
			rows, err := deps.Schedules.ScheduleStatus(ctx, args[0])
			if err != nil {
				return c.Send(describeError(l, err, "Failed to get schedule status"))
			}
			l.WithField("schedules_count", len(rows)).Info("Schedule status retrieved")
			return c.Send(formatScheduleStatus(rows))
		}))

	b.Handle("/review_pool", guard("/review_pool", "/review_pool <observer_id>", exactly(1),
		func(c telebot.Context, l *logrus.Entry, args []string) error {
			l = l.WithField("observer_id", args[0])
			pool, err := deps.Reviews.EligiblePool(ctx, args[0])
			if err != nil {
				return c.Send(describeError(l, err, "Failed to get review pool"))
			}
			if len(pool) == 0 {
				return c.Send("No observations are waiting for this observer's review.")
			}
			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("--- Review pool (%d) ---\n", len(pool)))
			for _, o := range pool {
				sb.WriteString(fmt.Sprintf("%s: %s by %s, %s\n", o.ID, o.StudentName, o.ObserverName, o.Timestamp.Format("2006-01-02 15:04")))
			}
			return c.Send(sb.String())
		}))

	b.Handle("/record_note", guard("/record_note", "/record_note <observer_id> <child_id> <scheduled|manual> <text>", atLeast(4),
		func(c telebot.Context, l *logrus.Entry, args []string) error {
			in := app.RecordObservationInput{
				ObserverID: args[0],
				StudentID:  args[1],
				ReportType: processing.ReportType(args[2]),
				Text:       strings.Join(args[3:], " "),
			}
			l = l.WithFields(logrus.Fields{"observer_id": in.ObserverID, "child_id": in.StudentID, "report_type": in.ReportType})
			o, err := deps.Observations.RecordObservation(ctx, in)
			if err != nil {
				return c.Send(describeError(l, err, "Failed to record observation"))
			}
			return c.Send(fmt.Sprintf("Observation %s recorded for %s.", o.ID, o.StudentName))
		}))

	b.Handle("/processing_history", guard("/processing_history", "/processing_history <observer_id> <child_id>", exactly(2),
		func(c telebot.Context, l *logrus.Entry, args []string) error {
			l = l.WithFields(logrus.Fields{"observer_id": args[0], "child_id": args[1]})
			entries, err := deps.Processing.HistoryFor(ctx, args[1], args[0], app.DefaultHistoryDays)
			if err != nil {
				return c.Send(describeError(l, err, "Failed to get processing history"))
			}
			return c.Send(formatHistory(entries))
		}))

	b.Handle("/scheduler_status", guard("/scheduler_status", "/scheduler_status", exactly(0),
		func(c telebot.Context, l *logrus.Entry, _ []string) error {
			snap, err := deps.Scheduler.Status(ctx)
			if err != nil {
				return c.Send(describeError(l, err, "Failed to get scheduler status"))
			}
			return c.Send(formatSchedulerSnapshot(snap))
		}))
}

// describeError logs err at the right level and returns the reply for the admin.
func describeError(l *logrus.Entry, err error, action string) string {
	logWithError := l.WithError(err)

	var vErr *app.ValidationError
	var nfErr *app.NotFoundError
	var cErr *app.ConflictError
	switch {
	case errors.As(err, &vErr):
		logWithError.Warn("Invalid input")
		return fmt.Sprintf("Error: %s %s.", vErr.Field, vErr.Reason)
	case errors.As(err, &nfErr):
		logWithError.Warn("Entity not found")
		return fmt.Sprintf("Error: %s %s was not found.", nfErr.Entity, nfErr.ID)
	case errors.As(err, &cErr):
		logWithError.Warn("Conflict")
		return "Error: " + cErr.Error() + "."
	case errors.Is(err, app.ErrPermission):
		logWithError.Warn("Permission denied")
		return msgUnauthorized
	default:
		logWithError.Error(action)
		return fmt.Sprintf("An error occurred: %s", err.Error())
	}
}

func formatScheduleStatus(rows []app.ScheduleStatus) string {
	if len(rows) == 0 {
		return "No active schedules."
	}
	var sb strings.Builder
	sb.WriteString("--- Schedule status ---\n")
	for _, r := range rows {
		name := r.Schedule.ChildID
		if r.Child != nil {
			name = r.Child.Name
		}
		state := "waiting"
		switch {
		case r.CanProcess:
			state = "due now"
		case r.ProcessedToday:
			state = "done today"
		}
		sb.WriteString(fmt.Sprintf("%s at %s, next %s: %s\n",
			name, r.Schedule.ScheduledTime, r.NextOccurrence.Format("2006-01-02 15:04"), state))
	}
	return sb.String()
}

func formatSchedulerSnapshot(s *app.SchedulerSnapshot) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Now: %s\n", s.CurrentTime.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Running: %t\n", s.Running))
	sb.WriteString(fmt.Sprintf("Active schedules: %d\n", s.ActiveSchedules))
	for _, p := range s.Schedules {
		window := ""
		if p.InReminderWindow {
			window = " [reminder window]"
		}
		sb.WriteString(fmt.Sprintf("%s at %s: %.1f min%s\n", shortID(p.ScheduleID), p.ScheduledTime, p.MinutesToSession, window))
	}
	return sb.String()
}

func formatHistory(entries []*processing.LogEntry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No reports in the last %d days.", app.DefaultHistoryDays)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("--- Reports, last %d days ---\n", app.DefaultHistoryDays))
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%s %s\n", e.ProcessedAt.Format("2006-01-02 15:04"), e.ReportType))
	}
	return sb.String()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
