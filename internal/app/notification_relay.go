package app

import (
	"context"
	"errors"
	"fmt"

	"learning_observer/internal/domain/directory"
	"learning_observer/internal/domain/notification"
	"learning_observer/internal/domain/observation"
	"learning_observer/internal/domain/review"
	"learning_observer/internal/infra/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RoutingKeyPeerReviewSubmitted is the event published after a principal notification is stored.
const RoutingKeyPeerReviewSubmitted = "peer_review.submitted"

// EventPublisher fans out domain events. Failures never affect the caller.
type EventPublisher interface {
	Publish(routingKey string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, any) error { return nil }

// NotificationRelay tells an organization's principal that one of its observers was reviewed.
type NotificationRelay struct {
	directory directory.Repository
	resolver  directory.PrincipalResolver
	notifRepo notification.Repository
	writer    notification.Writer
	events    EventPublisher
	now       Clock
	logger    *logrus.Entry
}

func NewNotificationRelay(
	dr directory.Repository,
	pr directory.PrincipalResolver,
	nr notification.Repository,
	nw notification.Writer,
	now Clock,
	logger *logrus.Entry,
) *NotificationRelay {
	if now == nil {
		now = systemClock
	}
	return &NotificationRelay{
		directory: dr,
		resolver:  pr,
		notifRepo: nr,
		writer:    nw,
		events:    noopPublisher{},
		now:       now,
		logger:    logger.WithField("component", "notification_relay"),
	}
}

func (r *NotificationRelay) WithPublisher(p EventPublisher) *NotificationRelay {
	if p != nil {
		r.events = p
	}
	return r
}

// PeerReviewSubmitted stores a notification for the principal of the observed author's
// organization. It never fails the caller: problems are logged and nil is returned.
func (r *NotificationRelay) PeerReviewSubmitted(ctx context.Context, pr *review.PeerReview, obs *observation.Observation, reviewer *directory.User) *notification.Notification {
	l := r.logger.WithFields(logrus.Fields{
		"observation_id": pr.ObservationID,
		"reviewer_id":    pr.ReviewerID,
		"observed_by":    pr.ObservedBy,
	})

	observed, err := r.directory.GetUser(ctx, pr.ObservedBy)
	if err != nil {
		l.WithError(err).Warn("Observed author lookup failed, notification skipped")
		metrics.IncrementNotification("skipped")
		return nil
	}
	if !observed.OrganizationID.Valid || observed.OrganizationID.String == "" {
		l.Warn("Observed author has no organization, notification skipped")
		metrics.IncrementNotification("skipped")
		return nil
	}

	principalID, err := r.resolver.ResolvePrincipal(ctx, observed.OrganizationID.String)
	if err != nil {
		if errors.Is(err, directory.ErrNoPrincipal) {
			l.WithField("organization_id", observed.OrganizationID.String).Warn("No principal for organization, notification skipped")
			metrics.IncrementNotification("skipped")
			return nil
		}
		l.WithError(&ExternalServiceError{Service: "principal lookup", Err: err}).Error("Principal lookup failed")
		metrics.IncrementNotification("failed")
		return nil
	}

	observedName := observed.Name
	if observedName == "" {
		observedName = obs.ObserverName
	}
	n := &notification.Notification{
		ID:          uuid.NewString(),
		RecipientID: principalID,
		SenderID:    pr.ReviewerID,
		Type:        notification.TypePeerReview,
		Title:       "Peer Review Received",
		Message: fmt.Sprintf("A peer review has been submitted by %s for %s's observation. Review Score: %d/5",
			reviewer.Name, observedName, pr.ReviewScore),
		Data: notification.Payload{
			ObservationID:    pr.ObservationID,
			ReviewerID:       pr.ReviewerID,
			ReviewerName:     reviewer.Name,
			ObservedBy:       pr.ObservedBy,
			ObservedUserName: observedName,
			ReviewScore:      pr.ReviewScore,
			RequiresChanges:  pr.RequiresChanges,
			ReviewComments:   pr.ReviewComments,
		},
		CreatedAt: r.now(),
	}

	if err := r.writer.InsertNotification(ctx, n); err != nil {
		l.WithError(&ExternalServiceError{Service: "notification store", Err: err}).Error("Failed to store principal notification")
		metrics.IncrementNotification("failed")
		return nil
	}
	metrics.IncrementNotification("created")
	l.WithField("principal_id", principalID).Info("Principal notified of peer review")

	if err := r.events.Publish(RoutingKeyPeerReviewSubmitted, n.Data); err != nil {
		l.WithError(err).Warn("Failed to publish peer review event")
	}
	return n
}

func (r *NotificationRelay) NotificationsFor(ctx context.Context, recipientID string, unreadOnly bool) ([]*notification.Notification, error) {
	list, err := r.notifRepo.ListByRecipient(ctx, recipientID, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

func (r *NotificationRelay) MarkRead(ctx context.Context, id, recipientID string) error {
	if err := r.notifRepo.MarkRead(ctx, id, recipientID); err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			return &NotFoundError{Entity: "notification", ID: id}
		}
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
