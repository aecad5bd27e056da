package memory

import (
	"context"
	"testing"
	"time"

	"learning_observer/internal/domain/directory"
	"learning_observer/internal/domain/observation"
	"learning_observer/internal/domain/processing"
	"learning_observer/internal/domain/review"
	"learning_observer/internal/domain/schedule"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestStore_ScheduleUpsertAndJoin(t *testing.T) {
	s := NewStore(false)
	ctx := context.Background()
	s.AddChild(directory.Child{ID: "c1", Name: "Charlie"})

	first, err := s.Upsert(ctx, "o1", "c1", schedule.TimeOfDay{Hour: 14}, day)
	require.NoError(t, err)
	second, err := s.Upsert(ctx, "o1", "c1", schedule.TimeOfDay{Hour: 15}, day.Add(time.Hour))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "o1", "c-missing", schedule.TimeOfDay{Hour: 9}, day)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, 2, s.ScheduleCount())

	byObserver, err := s.ListActiveByObserver(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, byObserver, 1, "schedules without a known child are dropped")
	assert.Equal(t, "Charlie", byObserver[0].Child.Name)

	all, err := s.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c-missing", all[0].ChildID, "ordered by time of day")
}

func TestStore_StrictProcessingLog(t *testing.T) {
	ctx := context.Background()
	entry := func() *processing.LogEntry {
		return &processing.LogEntry{ID: "x", ChildID: "c1", ObserverID: "o1", ReportType: processing.ReportTypeScheduled, ProcessedAt: day}
	}

	lenient := NewStore(false)
	require.NoError(t, lenient.Append(ctx, entry()))
	require.NoError(t, lenient.Append(ctx, entry()))

	strict := NewStore(true)
	require.NoError(t, strict.Append(ctx, entry()))
	assert.ErrorIs(t, strict.Append(ctx, entry()), processing.ErrDuplicateEntry)

	next := entry()
	next.ProcessedAt = day.AddDate(0, 0, 1)
	assert.NoError(t, strict.Append(ctx, next))
}

func TestStore_DuplicateReviewsRejected(t *testing.T) {
	ctx := context.Background()
	r := &review.PeerReview{ID: "r1", ObservationID: "obs1", ReviewerID: "u1", ReviewScore: 3}

	for _, strict := range []bool{true, false} {
		s := NewStore(strict)
		require.NoError(t, s.InsertPeerReview(ctx, r))
		assert.ErrorIs(t, s.InsertPeerReview(ctx, r), review.ErrDuplicate)
		assert.Equal(t, 1, s.ReviewCount())

		other := *r
		other.ID = "r2"
		other.ReviewerID = "u2"
		require.NoError(t, s.InsertPeerReview(ctx, &other))
		assert.Equal(t, 2, s.ReviewCount())
	}
}

func TestStore_ExistsForDateComparesCalendarDate(t *testing.T) {
	s := NewStore(false)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &observation.Observation{
		ID: "obs1", StudentID: "c1", ObserverID: "o1",
		Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	ok, err := s.ExistsForDate(ctx, "c1", "o1", time.Date(2024, 1, 1, 23, 0, 0, 0, kolkata))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ExistsForDate(ctx, "c1", "o1", time.Date(2024, 1, 2, 0, 30, 0, 0, kolkata))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.ExistsForDate(ctx, "c1", "o2", day)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ReturnsCopies(t *testing.T) {
	s := NewStore(false)
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, &observation.Observation{ID: "obs1", ObserverID: "o1"}))

	got, err := s.GetByID(ctx, "obs1")
	require.NoError(t, err)
	got.PeerReviewsCompleted = 9

	require.NoError(t, s.IncrementPeerReviewsCompleted(ctx, "obs1"))
	again, err := s.GetByID(ctx, "obs1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.PeerReviewsCompleted)

	assert.ErrorIs(t, s.IncrementPeerReviewsCompleted(ctx, "nope"), observation.ErrNotFound)
}
