package review

import "context"

// Repository reads peer reviews. Inserts go through Writer.
type Repository interface {
	Exists(ctx context.Context, observationID, reviewerID string) (bool, error)
	// ReviewedAmong returns the subset of observationIDs that have at least one review by anyone.
	ReviewedAmong(ctx context.Context, observationIDs []string) (map[string]bool, error)
	// ListByReviewer is newest first and includes reviewed observation context.
	ListByReviewer(ctx context.Context, reviewerID string) ([]*PeerReview, error)
	ListByObservations(ctx context.Context, observationIDs []string) ([]*PeerReview, error)
}

// Writer is the privileged insert capability for peer reviews.
type Writer interface {
	InsertPeerReview(ctx context.Context, r *PeerReview) error
}
