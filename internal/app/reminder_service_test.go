package app

import (
	"context"
	"testing"
	"time"

	"learning_observer/internal/domain/directory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTick_SendsReminderInWindow(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T13:30"))
	ctx := context.Background()
	_, err := e.schedules.SetSchedule(ctx, observerA, childID, "14:00")
	require.NoError(t, err)

	report, err := e.reminders.Tick(ctx)
	require.NoError(t, err)

	assert.Equal(t, TickReport{Checked: 1, InWindow: 1, Sent: 1}, report)
	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].to)
	assert.Equal(t, "Session Reminder: Observation for Charlie", sent[0].subject)
	assert.Contains(t, sent[0].body, "scheduled at 02:00 PM today")
}

func TestTick_SuppressedWhenObservationExists(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T09:00"))
	ctx := context.Background()
	_, err := e.schedules.SetSchedule(ctx, observerA, childID, "14:00")
	require.NoError(t, err)
	e.record(t, observerA, childID)

	e.clock.Set(at("2024-01-01T13:30"))
	report, err := e.reminders.Tick(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.InWindow)
	assert.Equal(t, 1, report.Suppressed)
	assert.Empty(t, e.mailer.Sent())
}

func TestTick_OutsideWindow(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T13:00"))
	ctx := context.Background()
	_, err := e.schedules.SetSchedule(ctx, observerA, childID, "14:00")
	require.NoError(t, err)

	for _, now := range []string{"2024-01-01T13:00", "2024-01-01T13:28", "2024-01-01T13:45", "2024-01-01T14:00"} {
		e.clock.Set(at(now))
		report, err := e.reminders.Tick(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.InWindow, now)
	}
	assert.Empty(t, e.mailer.Sent())
}

func TestTick_PausedScheduleIgnored(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T13:30"))
	ctx := context.Background()
	_, err := e.schedules.SetSchedule(ctx, observerA, childID, "14:00")
	require.NoError(t, err)
	require.NoError(t, e.schedules.SetActive(ctx, observerA, childID, false))

	report, err := e.reminders.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Checked)
}

func TestTick_FailedSendDoesNotStopPass(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T13:30"))
	ctx := context.Background()
	e.store.AddChild(directory.Child{ID: "child-2", Name: "Dana"})
	_, err := e.schedules.SetSchedule(ctx, observerA, childID, "14:00")
	require.NoError(t, err)
	_, err = e.schedules.SetSchedule(ctx, observerB, "child-2", "14:00")
	require.NoError(t, err)
	e.mailer.fail = map[string]bool{"alice@example.com": true}

	report, err := e.reminders.Tick(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, report.InWindow)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Sent)
	sent := e.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "bob@example.com", sent[0].to)
}

func TestTick_SkipsObserverWithoutEmail(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T13:30"))
	ctx := context.Background()
	e.store.AddUser(directory.User{ID: "obs-quiet", Name: "Quinn", Role: directory.RoleObserver})
	_, err := e.schedules.SetSchedule(ctx, "obs-quiet", childID, "14:00")
	require.NoError(t, err)

	report, err := e.reminders.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, e.mailer.Sent())
}

func TestTick_DeduperSendsOncePerSession(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T13:29"))
	ctx := context.Background()
	e.reminders.WithDeduper(&onceDeduper{})
	_, err := e.schedules.SetSchedule(ctx, observerA, childID, "14:00")
	require.NoError(t, err)

	// Two passes both land inside the 29-31 minute window.
	_, err = e.reminders.Tick(ctx)
	require.NoError(t, err)
	e.clock.Advance(time.Minute)
	report, err := e.reminders.Tick(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Duplicates)
	assert.Len(t, e.mailer.Sent(), 1)

	// The next day's session is a new key.
	e.clock.Set(at("2024-01-02T13:30"))
	_, err = e.reminders.Tick(ctx)
	require.NoError(t, err)
	assert.Len(t, e.mailer.Sent(), 2)
}

func TestTick_CancelledContext(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T13:30"))
	_, err := e.schedules.SetSchedule(context.Background(), observerA, childID, "14:00")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.reminders.Tick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.mailer.Sent())
}

func TestSnapshot(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T13:30"))
	ctx := context.Background()
	e.store.AddChild(directory.Child{ID: "child-2", Name: "Dana"})
	_, err := e.schedules.SetSchedule(ctx, observerA, childID, "14:00")
	require.NoError(t, err)
	_, err = e.schedules.SetSchedule(ctx, observerA, "child-2", "16:00")
	require.NoError(t, err)

	snap, err := e.reminders.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.ActiveSchedules)
	assert.False(t, snap.Running)
	require.Len(t, snap.Schedules, 2)
	assert.InDelta(t, 30.0, snap.Schedules[0].MinutesToSession, 0.001)
	assert.True(t, snap.Schedules[0].InReminderWindow)
	assert.InDelta(t, 150.0, snap.Schedules[1].MinutesToSession, 0.001)
	assert.False(t, snap.Schedules[1].InReminderWindow)
}

func TestReminderMessage(t *testing.T) {
	session := time.Date(2024, 1, 1, 9, 5, 0, 0, time.UTC)
	subject, body := reminderMessage("Charlie", session)

	assert.Equal(t, "Session Reminder: Observation for Charlie", subject)
	assert.Contains(t, body, "observation session for Charlie scheduled at 09:05 AM today")
	assert.Contains(t, body, "Please submit your report after the session.")
}
