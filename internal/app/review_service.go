package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"learning_observer/internal/domain/directory"
	"learning_observer/internal/domain/notification"
	"learning_observer/internal/domain/observation"
	"learning_observer/internal/domain/review"
	"learning_observer/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PoolLookback bounds how old a candidate observation may be.
const PoolLookback = 24 * time.Hour

// SubmitReviewInput is one reviewer's verdict on an observation.
type SubmitReviewInput struct {
	ObservationID         string `json:"observation_id" validate:"required"`
	ReviewerID            string `json:"reviewer_id" validate:"required"`
	Score                 *int   `json:"review_score" validate:"required,min=1,max=5"`
	Comments              string `json:"review_comments" validate:"required"`
	SuggestedImprovements string `json:"suggested_improvements"`
	RequiresChanges       bool   `json:"requires_changes"`
}

// SubmitReviewResult carries the stored review and, when one was created, the principal notification.
// CounterStale is set when the review was stored but peer_reviews_completed could not be bumped.
type SubmitReviewResult struct {
	Review       *review.PeerReview
	Notification *notification.Notification
	CounterStale bool
}

type ReviewService struct {
	observations observation.Repository
	reviews      review.Repository
	writer       review.Writer
	directory    directory.Repository
	relay        *NotificationRelay
	now          Clock
	logger       *logrus.Entry
}

func NewReviewService(
	or observation.Repository,
	rr review.Repository,
	rw review.Writer,
	dr directory.Repository,
	relay *NotificationRelay,
	now Clock,
	logger *logrus.Entry,
) *ReviewService {
	if now == nil {
		now = systemClock
	}
	return &ReviewService{
		observations: or,
		reviews:      rr,
		writer:       rw,
		directory:    dr,
		relay:        relay,
		now:          now,
		logger:       logger.WithField("component", "review_service"),
	}
}

// EligiblePool lists recent observations by other observers that nobody has reviewed yet,
// newest first, capped at the requester's lifetime authored count.
func (s *ReviewService) EligiblePool(ctx context.Context, requesterID string) ([]*observation.Observation, error) {
	if _, err := s.directory.GetUser(ctx, requesterID); err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, &NotFoundError{Entity: "observer", ID: requesterID}
		}
		return nil, fmt.Errorf("failed to get observer: %w", err)
	}

	quota, err := s.observations.CountByObserver(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("failed to count authored observations: %w", err)
	}
	if quota <= 0 {
		return []*observation.Observation{}, nil
	}

	since := s.now().Add(-PoolLookback)
	candidates, err := s.observations.ListRecentByOthers(ctx, requesterID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidate observations: %w", err)
	}
	if len(candidates) == 0 {
		return []*observation.Observation{}, nil
	}

	ids := make([]string, 0, len(candidates))
	for _, o := range candidates {
		ids = append(ids, o.ID)
	}
	reviewed, err := s.reviews.ReviewedAmong(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing reviews: %w", err)
	}

	pool := make([]*observation.Observation, 0, len(candidates))
	for _, o := range candidates {
		if o.ObserverID == requesterID || reviewed[o.ID] {
			continue
		}
		pool = append(pool, o)
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Timestamp.After(pool[j].Timestamp)
	})
	if len(pool) > quota {
		pool = pool[:quota]
	}

	s.logger.WithFields(logrus.Fields{
		"requester_id": requesterID,
		"quota":        quota,
		"candidates":   len(candidates),
		"pool_size":    len(pool),
	}).Debug("Eligible pool computed")
	return pool, nil
}

// SubmitReview stores a review and bumps the observation's completed-review counter.
// Notifying the principal is best effort and never fails the submission.
func (s *ReviewService) SubmitReview(ctx context.Context, in SubmitReviewInput) (*SubmitReviewResult, error) {
	in.ObservationID = strings.TrimSpace(in.ObservationID)
	in.ReviewerID = strings.TrimSpace(in.ReviewerID)
	in.Comments = strings.TrimSpace(in.Comments)
	in.SuggestedImprovements = strings.TrimSpace(in.SuggestedImprovements)

	l := s.logger.WithFields(logrus.Fields{
		"observation_id": in.ObservationID,
		"reviewer_id":    in.ReviewerID,
	})

	if err := validateStruct(in); err != nil {
		metrics.IncrementReviewSubmission("rejected")
		return nil, err
	}

	obs, err := s.observations.GetByID(ctx, in.ObservationID)
	if err != nil {
		if errors.Is(err, observation.ErrNotFound) {
			metrics.IncrementReviewSubmission("rejected")
			return nil, &NotFoundError{Entity: "observation", ID: in.ObservationID}
		}
		return nil, fmt.Errorf("failed to get observation: %w", err)
	}
	reviewer, err := s.directory.GetUser(ctx, in.ReviewerID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			metrics.IncrementReviewSubmission("rejected")
			return nil, &NotFoundError{Entity: "reviewer", ID: in.ReviewerID}
		}
		return nil, fmt.Errorf("failed to get reviewer: %w", err)
	}

	if obs.ObserverID == in.ReviewerID {
		l.Warn("Self review rejected")
		metrics.IncrementReviewSubmission("rejected")
		return nil, &PermissionError{Reason: "observers cannot review their own observations"}
	}

	exists, err := s.reviews.Exists(ctx, in.ObservationID, in.ReviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing review: %w", err)
	}
	conflict := &ConflictError{Entity: "peer review", Key: in.ObservationID + "/" + in.ReviewerID}
	if exists {
		l.Info("Duplicate review rejected")
		metrics.IncrementReviewSubmission("rejected")
		return nil, conflict
	}

	pr := &review.PeerReview{
		ID:                    uuid.NewString(),
		ObservationID:         obs.ID,
		ReviewerID:            in.ReviewerID,
		ObservedBy:            obs.ObserverID,
		ReviewScore:           *in.Score,
		ReviewComments:        in.Comments,
		SuggestedImprovements: in.SuggestedImprovements,
		RequiresChanges:       in.RequiresChanges,
		CreatedAt:             s.now(),
	}
	if err := s.writer.InsertPeerReview(ctx, pr); err != nil {
		if errors.Is(err, review.ErrDuplicate) {
			l.Info("Duplicate review rejected by store")
			metrics.IncrementReviewSubmission("rejected")
			conflict.Err = err
			return nil, conflict
		}
		return nil, fmt.Errorf("failed to insert peer review: %w", err)
	}

	res := &SubmitReviewResult{Review: pr}
	if err := s.observations.IncrementPeerReviewsCompleted(ctx, obs.ID); err != nil {
		l.WithError(err).Error("Review stored but completed counter not incremented")
		res.CounterStale = true
	}
	// TODO: move peer_review_status off "pending" once completed reaches required; the
	// target status values are not defined yet.

	metrics.IncrementReviewSubmission("accepted")
	l.WithField("review_score", pr.ReviewScore).Info("Peer review submitted")

	pr.ReviewerName = reviewer.Name
	pr.ObservedUserName = obs.ObserverName
	pr.StudentName = obs.StudentName

	if s.relay != nil {
		res.Notification = s.relay.PeerReviewSubmitted(ctx, pr, obs, reviewer)
	}
	return res, nil
}

// CompletedReviewsBy is the reviewer's own audit trail, newest first.
func (s *ReviewService) CompletedReviewsBy(ctx context.Context, reviewerID string) ([]*review.PeerReview, error) {
	list, err := s.reviews.ListByReviewer(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed reviews: %w", err)
	}
	return list, nil
}

// ReviewsForOrganization lists every review of observations authored by the organization's users.
func (s *ReviewService) ReviewsForOrganization(ctx context.Context, organizationID string) ([]*review.PeerReview, error) {
	users, err := s.directory.ListUsersByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization users: %w", err)
	}
	if len(users) == 0 {
		return []*review.PeerReview{}, nil
	}
	userIDs := make([]string, 0, len(users))
	for _, u := range users {
		userIDs = append(userIDs, u.ID)
	}

	obs, err := s.observations.ListByObservers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization observations: %w", err)
	}
	if len(obs) == 0 {
		return []*review.PeerReview{}, nil
	}
	obsIDs := make([]string, 0, len(obs))
	for _, o := range obs {
		obsIDs = append(obsIDs, o.ID)
	}

	list, err := s.reviews.ListByObservations(ctx, obsIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list organization reviews: %w", err)
	}
	return list, nil
}
