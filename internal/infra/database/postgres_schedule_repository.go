package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"learning_observer/internal/domain/directory"
	"learning_observer/internal/domain/schedule"

	"github.com/google/uuid"
)

type PostgresScheduleRepository struct {
	db *sql.DB
}

func NewPostgresScheduleRepository(db *sql.DB) *PostgresScheduleRepository {
	return &PostgresScheduleRepository{db: db}
}

const scheduleColumns = `id, observer_id, child_id, scheduled_time, is_active, created_at, updated_at`

func (r *PostgresScheduleRepository) Upsert(ctx context.Context, observerID, childID string, at schedule.TimeOfDay, now time.Time) (*schedule.ScheduledReport, error) {
	query := `INSERT INTO scheduled_reports (id, observer_id, child_id, scheduled_time, is_active, created_at, updated_at)
               VALUES ($1, $2, $3, $4, TRUE, $5, $5)
               ON CONFLICT (observer_id, child_id)
               DO UPDATE SET scheduled_time = EXCLUDED.scheduled_time, updated_at = EXCLUDED.updated_at
               RETURNING ` + scheduleColumns
	sr := &schedule.ScheduledReport{}
	err := r.db.QueryRowContext(ctx, query, uuid.NewString(), observerID, childID, at, now).Scan(
		&sr.ID, &sr.ObserverID, &sr.ChildID, &sr.ScheduledTime, &sr.IsActive, &sr.CreatedAt, &sr.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error upserting scheduled report: %w", err)
	}
	return sr, nil
}

func (r *PostgresScheduleRepository) Get(ctx context.Context, observerID, childID string) (*schedule.ScheduledReport, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_reports WHERE observer_id = $1 AND child_id = $2`
	sr := &schedule.ScheduledReport{}
	err := r.db.QueryRowContext(ctx, query, observerID, childID).Scan(
		&sr.ID, &sr.ObserverID, &sr.ChildID, &sr.ScheduledTime, &sr.IsActive, &sr.CreatedAt, &sr.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, schedule.ErrNotFound
		}
		return nil, fmt.Errorf("error getting scheduled report: %w", err)
	}
	return sr, nil
}

func (r *PostgresScheduleRepository) SetActive(ctx context.Context, observerID, childID string, active bool, now time.Time) error {
	query := `UPDATE scheduled_reports SET is_active = $1, updated_at = $2
               WHERE observer_id = $3 AND child_id = $4`
	res, err := r.db.ExecContext(ctx, query, active, now, observerID, childID)
	if err != nil {
		return fmt.Errorf("error updating scheduled report state: %w", err)
	}
	return expectAffected(res, schedule.ErrNotFound)
}

func (r *PostgresScheduleRepository) Delete(ctx context.Context, observerID, childID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_reports WHERE observer_id = $1 AND child_id = $2`, observerID, childID)
	if err != nil {
		return fmt.Errorf("error deleting scheduled report: %w", err)
	}
	return expectAffected(res, schedule.ErrNotFound)
}

func (r *PostgresScheduleRepository) ListActiveByObserver(ctx context.Context, observerID string) ([]*schedule.ScheduledReport, error) {
	query := `SELECT s.id, s.observer_id, s.child_id, s.scheduled_time, s.is_active, s.created_at, s.updated_at,
                      c.id, c.name, c.grade, c.birth_date
               FROM scheduled_reports s
               JOIN children c ON c.id = s.child_id
               WHERE s.observer_id = $1 AND s.is_active = TRUE
               ORDER BY s.scheduled_time, c.name`
	rows, err := r.db.QueryContext(ctx, query, observerID)
	if err != nil {
		return nil, fmt.Errorf("error listing active schedules for observer: %w", err)
	}
	defer rows.Close()

	list := make([]*schedule.ScheduledReport, 0)
	for rows.Next() {
		sr := &schedule.ScheduledReport{Child: &directory.Child{}}
		if err := rows.Scan(
			&sr.ID, &sr.ObserverID, &sr.ChildID, &sr.ScheduledTime, &sr.IsActive, &sr.CreatedAt, &sr.UpdatedAt,
			&sr.Child.ID, &sr.Child.Name, &sr.Child.Grade, &sr.Child.BirthDate,
		); err != nil {
			return nil, fmt.Errorf("error scanning scheduled report: %w", err)
		}
		list = append(list, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled reports: %w", err)
	}
	return list, nil
}

func (r *PostgresScheduleRepository) ListActive(ctx context.Context) ([]*schedule.ScheduledReport, error) {
	query := `SELECT ` + scheduleColumns + ` FROM scheduled_reports WHERE is_active = TRUE ORDER BY scheduled_time`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active schedules: %w", err)
	}
	defer rows.Close()

	list := make([]*schedule.ScheduledReport, 0)
	for rows.Next() {
		sr := &schedule.ScheduledReport{}
		if err := rows.Scan(&sr.ID, &sr.ObserverID, &sr.ChildID, &sr.ScheduledTime, &sr.IsActive, &sr.CreatedAt, &sr.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning scheduled report: %w", err)
		}
		list = append(list, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scheduled reports: %w", err)
	}
	return list, nil
}

func expectAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
