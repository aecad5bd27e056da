package telegram

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"learning_observer/internal/app"
	"learning_observer/internal/domain/directory"
	"learning_observer/internal/domain/processing"
	"learning_observer/internal/domain/schedule"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestDescribeError(t *testing.T) {
	l := quietLogger()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &app.ValidationError{Field: "scheduled_time", Reason: "must be HH:MM"}, "Error: scheduled_time must be HH:MM."},
		{"not found", &app.NotFoundError{Entity: "child", ID: "c1"}, "Error: child c1 was not found."},
		{"wrapped not found", fmt.Errorf("lookup: %w", &app.NotFoundError{Entity: "observer", ID: "o1"}), "Error: observer o1 was not found."},
		{"conflict", &app.ConflictError{Entity: "peer review", Key: "o1/r1"}, "Error: peer review already exists for o1/r1."},
		{"permission", &app.PermissionError{Reason: "self review"}, msgUnauthorized},
		{"other", errors.New("connection reset"), "An error occurred: connection reset"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeError(l, tt.err, "action"))
		})
	}
}

func TestFormatScheduleStatus(t *testing.T) {
	assert.Equal(t, "No active schedules.", formatScheduleStatus(nil))

	next := time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC)
	rows := []app.ScheduleStatus{
		{
			Child:          &directory.Child{ID: "c1", Name: "Charlie"},
			Schedule:       &schedule.ScheduledReport{ChildID: "c1", ScheduledTime: schedule.TimeOfDay{Hour: 14}},
			NextOccurrence: next,
			IsDue:          true,
			CanProcess:     true,
		},
		{
			Schedule:       &schedule.ScheduledReport{ChildID: "c2", ScheduledTime: schedule.TimeOfDay{Hour: 9, Minute: 30}},
			NextOccurrence: next.Add(19*time.Hour + 30*time.Minute),
			ProcessedToday: true,
		},
	}

	out := formatScheduleStatus(rows)

	assert.Contains(t, out, "Charlie at 14:00, next 2024-01-01 14:00: due now")
	assert.Contains(t, out, "c2 at 09:30, next 2024-01-02 09:30: done today")
}

func TestFormatSchedulerSnapshot(t *testing.T) {
	snap := &app.SchedulerSnapshot{
		CurrentTime:     time.Date(2024, 1, 1, 13, 30, 0, 0, time.UTC),
		Running:         true,
		ActiveSchedules: 1,
		Schedules: []app.ScheduleProbe{{
			ScheduleID:       "0f8fad5b-d9cb-469f-a165-70867728950e",
			ScheduledTime:    schedule.TimeOfDay{Hour: 14},
			MinutesToSession: 30,
			InReminderWindow: true,
		}},
	}

	out := formatSchedulerSnapshot(snap)

	assert.Contains(t, out, "Running: true")
	assert.Contains(t, out, "Active schedules: 1")
	assert.Contains(t, out, "0f8fad5b... at 14:00: 30.0 min [reminder window]")
}

func TestFormatHistory(t *testing.T) {
	assert.Equal(t, "No reports in the last 30 days.", formatHistory(nil))

	out := formatHistory([]*processing.LogEntry{{
		ReportType:  processing.ReportTypeScheduled,
		ProcessedAt: time.Date(2024, 1, 1, 14, 5, 0, 0, time.UTC),
	}})
	assert.Contains(t, out, "2024-01-01 14:05 scheduled")
}

func TestArgCheckers(t *testing.T) {
	assert.True(t, exactly(2)(2))
	assert.False(t, exactly(2)(3))
	assert.True(t, atLeast(4)(7))
	assert.False(t, atLeast(4)(3))
}

func TestAdminHelpListsCommands(t *testing.T) {
	help := adminHelpText()
	for _, cmd := range []string{"/set_schedule", "/pause_schedule", "/resume_schedule", "/delete_schedule",
		"/schedule_status", "/review_pool", "/record_note", "/processing_history", "/scheduler_status"} {
		assert.Contains(t, help, cmd)
	}
}
