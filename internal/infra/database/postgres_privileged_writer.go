package database

import (
	"context"
	"database/sql"
	"fmt"

	"learning_observer/internal/domain/notification"
	"learning_observer/internal/domain/review"
)

// PostgresPrivilegedWriter inserts rows that ordinary request credentials may not write.
// It holds its own pool opened with the service credentials.
type PostgresPrivilegedWriter struct {
	db *sql.DB
}

func NewPostgresPrivilegedWriter(serviceDB *sql.DB) *PostgresPrivilegedWriter {
	return &PostgresPrivilegedWriter{db: serviceDB}
}

func (w *PostgresPrivilegedWriter) InsertPeerReview(ctx context.Context, pr *review.PeerReview) error {
	query := `INSERT INTO peer_reviews (id, observation_id, reviewer_id, observed_by, review_score,
                                        review_comments, suggested_improvements, requires_changes, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := w.db.ExecContext(ctx, query,
		pr.ID, pr.ObservationID, pr.ReviewerID, pr.ObservedBy, pr.ReviewScore,
		pr.ReviewComments, pr.SuggestedImprovements, pr.RequiresChanges, pr.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return review.ErrDuplicate
		}
		return fmt.Errorf("error inserting peer review: %w", err)
	}
	return nil
}

func (w *PostgresPrivilegedWriter) InsertNotification(ctx context.Context, n *notification.Notification) error {
	var sender sql.NullString
	if n.SenderID != "" {
		sender = sql.NullString{String: n.SenderID, Valid: true}
	}
	query := `INSERT INTO notifications (id, recipient_id, sender_id, type, title, message, data, read, created_at)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := w.db.ExecContext(ctx, query,
		n.ID, n.RecipientID, sender, n.Type, n.Title, n.Message, n.Data, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error inserting notification: %w", err)
	}
	return nil
}
