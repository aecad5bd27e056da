package database

import (
	"context"
	"database/sql"
	"fmt"

	"learning_observer/internal/domain/review"

	"github.com/lib/pq"
)

type PostgresReviewRepository struct {
	db *sql.DB
}

func NewPostgresReviewRepository(db *sql.DB) *PostgresReviewRepository {
	return &PostgresReviewRepository{db: db}
}

func (r *PostgresReviewRepository) Exists(ctx context.Context, observationID, reviewerID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM peer_reviews WHERE observation_id = $1 AND reviewer_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, observationID, reviewerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking peer review: %w", err)
	}
	return exists, nil
}

func (r *PostgresReviewRepository) ReviewedAmong(ctx context.Context, observationIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(observationIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT observation_id FROM peer_reviews WHERE observation_id = ANY($1::uuid[])`, pq.Array(observationIDs))
	if err != nil {
		return nil, fmt.Errorf("error querying reviewed observations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning reviewed observation: %w", err)
		}
		out[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviewed observations: %w", err)
	}
	return out, nil
}

const reviewListQuery = `SELECT pr.id, pr.observation_id, pr.reviewer_id, pr.observed_by, pr.review_score,
                      pr.review_comments, pr.suggested_improvements, pr.requires_changes, pr.created_at,
                      COALESCE(u.name, ''), o.observer_name, o.student_name
               FROM peer_reviews pr
               JOIN observations o ON o.id = pr.observation_id
               LEFT JOIN users u ON u.id = pr.reviewer_id`

func scanReviews(rows *sql.Rows) ([]*review.PeerReview, error) {
	list := make([]*review.PeerReview, 0)
	for rows.Next() {
		pr := &review.PeerReview{}
		if err := rows.Scan(
			&pr.ID, &pr.ObservationID, &pr.ReviewerID, &pr.ObservedBy, &pr.ReviewScore,
			&pr.ReviewComments, &pr.SuggestedImprovements, &pr.RequiresChanges, &pr.CreatedAt,
			&pr.ReviewerName, &pr.ObservedUserName, &pr.StudentName,
		); err != nil {
			return nil, fmt.Errorf("error scanning peer review row: %w", err)
		}
		list = append(list, pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating peer review rows: %w", err)
	}
	return list, nil
}

func (r *PostgresReviewRepository) ListByReviewer(ctx context.Context, reviewerID string) ([]*review.PeerReview, error) {
	rows, err := r.db.QueryContext(ctx, reviewListQuery+` WHERE pr.reviewer_id = $1 ORDER BY pr.created_at DESC`, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("error listing reviews by reviewer: %w", err)
	}
	defer rows.Close()
	return scanReviews(rows)
}

func (r *PostgresReviewRepository) ListByObservations(ctx context.Context, observationIDs []string) ([]*review.PeerReview, error) {
	if len(observationIDs) == 0 {
		return []*review.PeerReview{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		reviewListQuery+` WHERE pr.observation_id = ANY($1::uuid[]) ORDER BY pr.created_at DESC`, pq.Array(observationIDs))
	if err != nil {
		return nil, fmt.Errorf("error listing reviews by observations: %w", err)
	}
	defer rows.Close()
	return scanReviews(rows)
}
