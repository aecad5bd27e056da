package observation

import (
	"context"
	"time"
)

// Repository persists observations and their peer-review bookkeeping.
type Repository interface {
	Create(ctx context.Context, o *Observation) error
	GetByID(ctx context.Context, id string) (*Observation, error)

	// CountByObserver is the observer's lifetime authored count.
	CountByObserver(ctx context.Context, observerID string) (int, error)
	// ListRecentByOthers returns observations not authored by observerID with
	// timestamp >= since, newest first.
	ListRecentByOthers(ctx context.Context, observerID string, since time.Time) ([]*Observation, error)
	ListByObservers(ctx context.Context, observerIDs []string) ([]*Observation, error)
	// ExistsForDate reports whether the pair has an observation dated on day's calendar date.
	ExistsForDate(ctx context.Context, childID, observerID string, day time.Time) (bool, error)

	// IncrementPeerReviewsCompleted adds exactly one to peer_reviews_completed.
	IncrementPeerReviewsCompleted(ctx context.Context, id string) error
}
