package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learning_observer/internal/domain/observation"

	"github.com/lib/pq"
)

type PostgresObservationRepository struct {
	db *sql.DB
}

func NewPostgresObservationRepository(db *sql.DB) *PostgresObservationRepository {
	return &PostgresObservationRepository{db: db}
}

const observationColumns = `id, student_id, student_name, observer_id, observer_name, class_name, date, timestamp,
       observations, file_url, report, peer_reviews_required, peer_reviews_completed, peer_review_status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanObservation(row rowScanner) (*observation.Observation, error) {
	o := &observation.Observation{}
	err := row.Scan(
		&o.ID, &o.StudentID, &o.StudentName, &o.ObserverID, &o.ObserverName, &o.ClassName, &o.Date, &o.Timestamp,
		&o.Text, &o.FileURL, &o.Report, &o.PeerReviewsRequired, &o.PeerReviewsCompleted, &o.PeerReviewStatus,
	)
	return o, err
}

func scanObservations(rows *sql.Rows) ([]*observation.Observation, error) {
	list := make([]*observation.Observation, 0)
	for rows.Next() {
		o, err := scanObservation(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning observation row: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating observation rows: %w", err)
	}
	return list, nil
}

func (r *PostgresObservationRepository) Create(ctx context.Context, o *observation.Observation) error {
	query := `INSERT INTO observations (` + observationColumns + `)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.StudentID, o.StudentName, o.ObserverID, o.ObserverName, o.ClassName, o.Date.Format("2006-01-02"), o.Timestamp,
		o.Text, o.FileURL, o.Report, o.PeerReviewsRequired, o.PeerReviewsCompleted, o.PeerReviewStatus,
	)
	if err != nil {
		return fmt.Errorf("error creating observation: %w", err)
	}
	return nil
}

func (r *PostgresObservationRepository) GetByID(ctx context.Context, id string) (*observation.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations WHERE id = $1`
	o, err := scanObservation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, observation.ErrNotFound
		}
		return nil, fmt.Errorf("error getting observation by ID: %w", err)
	}
	return o, nil
}

func (r *PostgresObservationRepository) CountByObserver(ctx context.Context, observerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM observations WHERE observer_id = $1`, observerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("error counting observations: %w", err)
	}
	return n, nil
}

func (r *PostgresObservationRepository) ListRecentByOthers(ctx context.Context, observerID string, since time.Time) ([]*observation.Observation, error) {
	query := `SELECT ` + observationColumns + ` FROM observations
               WHERE observer_id <> $1 AND timestamp >= $2
               ORDER BY timestamp DESC`
	rows, err := r.db.QueryContext(ctx, query, observerID, since)
	if err != nil {
		return nil, fmt.Errorf("error listing recent observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (r *PostgresObservationRepository) ListByObservers(ctx context.Context, observerIDs []string) ([]*observation.Observation, error) {
	if len(observerIDs) == 0 {
		return []*observation.Observation{}, nil
	}
	query := `SELECT ` + observationColumns + ` FROM observations
               WHERE observer_id = ANY($1::uuid[])
               ORDER BY timestamp DESC`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(observerIDs))
	if err != nil {
		return nil, fmt.Errorf("error listing observations by observers: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func (r *PostgresObservationRepository) ExistsForDate(ctx context.Context, childID, observerID string, day time.Time) (bool, error) {
	query := `SELECT EXISTS (
                   SELECT 1 FROM observations WHERE student_id = $1 AND observer_id = $2 AND date = $3::date
               )`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, childID, observerID, day.Format("2006-01-02")).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking observations for date: %w", err)
	}
	return exists, nil
}

func (r *PostgresObservationRepository) IncrementPeerReviewsCompleted(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE observations SET peer_reviews_completed = peer_reviews_completed + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error incrementing completed reviews: %w", err)
	}
	return expectAffected(res, observation.ErrNotFound)
}
