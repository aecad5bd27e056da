package review

import (
	"errors"
	"time"
)

// ErrDuplicate is returned when the reviewer has already reviewed the observation.
var ErrDuplicate = errors.New("peer review already exists for this reviewer")

const (
	MinScore = 1
	MaxScore = 5
)

// PeerReview is an immutable review of another observer's observation.
// Corresponds to the 'peer_reviews' table.
type PeerReview struct {
	ID                    string
	ObservationID         string
	ReviewerID            string
	ObservedBy            string // author of the reviewed observation
	ReviewScore           int
	ReviewComments        string
	SuggestedImprovements string
	RequiresChanges       bool
	CreatedAt             time.Time

	// Filled by listing queries only.
	ReviewerName     string
	ObservedUserName string
	StudentName      string
}
