package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learning_observer/internal/domain/processing"
)

type PostgresProcessingRepository struct {
	db *sql.DB
}

func NewPostgresProcessingRepository(db *sql.DB) *PostgresProcessingRepository {
	return &PostgresProcessingRepository{db: db}
}

// Append stores the entry. processed_on is the calendar day of ProcessedAt in its own zone.
func (r *PostgresProcessingRepository) Append(ctx context.Context, e *processing.LogEntry) error {
	query := `INSERT INTO report_processing_log (id, child_id, observer_id, observation_id, report_type, processed_at, processed_on)
               VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.ChildID, e.ObserverID, e.ObservationID, e.ReportType, e.ProcessedAt, e.ProcessedAt.Format("2006-01-02"),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return processing.ErrDuplicateEntry
		}
		return fmt.Errorf("error appending processing log entry: %w", err)
	}
	return nil
}

func (r *PostgresProcessingRepository) ExistsBetween(ctx context.Context, childID, observerID string, from, to time.Time) (bool, error) {
	query := `SELECT EXISTS (
                   SELECT 1 FROM report_processing_log
                   WHERE child_id = $1 AND observer_id = $2 AND processed_at >= $3 AND processed_at < $4
               )`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, childID, observerID, from, to).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking processing log: %w", err)
	}
	return exists, nil
}

func (r *PostgresProcessingRepository) ListSince(ctx context.Context, childID, observerID string, since time.Time) ([]*processing.LogEntry, error) {
	query := `SELECT id, child_id, observer_id, observation_id, report_type, processed_at
               FROM report_processing_log
               WHERE child_id = $1 AND observer_id = $2 AND processed_at >= $3
               ORDER BY processed_at DESC`
	rows, err := r.db.QueryContext(ctx, query, childID, observerID, since)
	if err != nil {
		return nil, fmt.Errorf("error listing processing history: %w", err)
	}
	defer rows.Close()

	entries := make([]*processing.LogEntry, 0)
	for rows.Next() {
		e := &processing.LogEntry{}
		if err := rows.Scan(&e.ID, &e.ChildID, &e.ObserverID, &e.ObservationID, &e.ReportType, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("error scanning processing log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating processing log: %w", err)
	}
	return entries, nil
}
