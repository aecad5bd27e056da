package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetSchedule_UpsertsPair(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T09:00"))
	ctx := context.Background()

	first, err := e.schedules.SetSchedule(ctx, observerA, childID, "14:00")
	require.NoError(t, err)
	assert.True(t, first.IsActive)

	second, err := e.schedules.SetSchedule(ctx, observerA, childID, "15:30")
	require.NoError(t, err)

	assert.Equal(t, 1, e.store.ScheduleCount())
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "15:30", second.ScheduledTime.String())
}

func TestSetSchedule_Validation(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T09:00"))
	ctx := context.Background()

	_, err := e.schedules.SetSchedule(ctx, observerA, childID, "25:00")
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "scheduled_time", vErr.Field)

	_, err = e.schedules.SetSchedule(ctx, "", childID, "10:00")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = e.schedules.SetSchedule(ctx, "ghost", childID, "10:00")
	var nfErr *NotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "observer", nfErr.Entity)

	_, err = e.schedules.SetSchedule(ctx, observerA, "ghost", "10:00")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 0, e.store.ScheduleCount())
}

func TestSetActiveAndDelete(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T09:00"))
	ctx := context.Background()

	_, err := e.schedules.SetSchedule(ctx, observerA, childID, "14:00")
	require.NoError(t, err)

	require.NoError(t, e.schedules.SetActive(ctx, observerA, childID, false))
	list, err := e.schedules.ListActiveFor(ctx, observerA)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, e.schedules.SetActive(ctx, observerA, childID, true))
	list, err = e.schedules.ListActiveFor(ctx, observerA)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Child)
	assert.Equal(t, "Charlie", list[0].Child.Name)

	require.NoError(t, e.schedules.DeleteSchedule(ctx, observerA, childID))
	assert.ErrorIs(t, e.schedules.DeleteSchedule(ctx, observerA, childID), ErrNotFound)
	assert.ErrorIs(t, e.schedules.SetActive(ctx, observerA, childID, true), ErrNotFound)
}

func TestScheduleStatus(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T13:00"))
	ctx := context.Background()

	_, err := e.schedules.SetSchedule(ctx, observerA, childID, "14:00")
	require.NoError(t, err)

	rows, err := e.schedules.ScheduleStatus(ctx, observerA)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].NextOccurrence.Equal(at("2024-01-01T14:00")))
	assert.False(t, rows[0].IsDue)
	assert.False(t, rows[0].CanProcess)

	e.clock.Set(at("2024-01-01T13:45"))
	due, err := e.schedules.DueReports(ctx, observerA)
	require.NoError(t, err)
	require.Len(t, due, 1)

	e.record(t, observerA, childID)
	due, err = e.schedules.DueReports(ctx, observerA)
	require.NoError(t, err)
	assert.Empty(t, due)

	rows, err = e.schedules.ScheduleStatus(ctx, observerA)
	require.NoError(t, err)
	assert.True(t, rows[0].IsDue)
	assert.True(t, rows[0].ProcessedToday)
}

func TestBeginScheduledReport(t *testing.T) {
	e := newEnv(t, false, at("2024-01-01T14:00"))
	ctx := context.Background()

	child, err := e.schedules.BeginScheduledReport(ctx, observerA, childID)
	require.NoError(t, err)
	assert.Equal(t, "Charlie", child.Name)

	_, err = e.schedules.BeginScheduledReport(ctx, observerA, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	e.record(t, observerA, childID)
	_, err = e.schedules.BeginScheduledReport(ctx, observerA, childID)
	assert.ErrorIs(t, err, ErrConflict)
}
