package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02T15:04", s, time.UTC)
	require.NoError(t, err)
	return ts
}

func TestNextOccurrence(t *testing.T) {
	at := TimeOfDay{Hour: 14}

	tests := []struct {
		name string
		now  string
		want string
	}{
		{"earlier today", "2024-01-01T13:00", "2024-01-01T14:00"},
		{"exactly at the time rolls over", "2024-01-01T14:00", "2024-01-02T14:00"},
		{"later today", "2024-01-01T18:45", "2024-01-02T14:00"},
		{"month end", "2024-01-31T20:00", "2024-02-01T14:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrence(at, mustTime(t, tt.now))
			assert.True(t, got.Equal(mustTime(t, tt.want)), "got %s", got)
		})
	}
}

func TestNextOccurrence_KeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 13, 0, 0, 0, loc)

	got := NextOccurrence(TimeOfDay{Hour: 14}, now)

	assert.Equal(t, loc, got.Location())
	assert.Equal(t, 14, got.Hour())
}

func TestIsDue_HourAheadIsNotDue(t *testing.T) {
	now := mustTime(t, "2024-01-01T13:00")
	next := NextOccurrence(TimeOfDay{Hour: 14}, now)

	assert.True(t, next.Equal(mustTime(t, "2024-01-01T14:00")))
	assert.False(t, IsDue(next, now))
}

func TestIsDue_Boundaries(t *testing.T) {
	next := mustTime(t, "2024-01-01T14:00")

	assert.True(t, IsDue(next, next.Add(-30*time.Minute)))
	assert.True(t, IsDue(next, next.Add(30*time.Minute)))
	assert.True(t, IsDue(next, next))
	assert.False(t, IsDue(next, next.Add(-31*time.Minute)))
	assert.False(t, IsDue(next, next.Add(31*time.Minute)))
}

func TestShouldRemind_Boundaries(t *testing.T) {
	next := mustTime(t, "2024-01-01T14:00")

	tests := []struct {
		ahead time.Duration
		want  bool
	}{
		{28 * time.Minute, false},
		{29 * time.Minute, true},
		{30 * time.Minute, true},
		{31 * time.Minute, true},
		{31*time.Minute + time.Second, false},
		{0, false},
		{-30 * time.Minute, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldRemind(next, next.Add(-tt.ahead)), "ahead=%s", tt.ahead)
	}
}

// The two policies disagree on purpose at 10 minutes ahead.
func TestPoliciesAreIndependent(t *testing.T) {
	next := mustTime(t, "2024-01-01T14:00")
	now := next.Add(-10 * time.Minute)

	assert.True(t, IsDue(next, now))
	assert.False(t, ShouldRemind(next, now))
}

func TestDayBounds(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	ref := time.Date(2024, 3, 10, 23, 59, 0, 0, loc)

	start, end := DayBounds(ref)

	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2024, 3, 11, 0, 0, 0, 0, loc), end)
}
