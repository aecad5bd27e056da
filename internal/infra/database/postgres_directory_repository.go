package database

import (
	"context"
	"database/sql"
	"fmt"

	"learning_observer/internal/domain/directory"
)

// PostgresDirectoryRepository reads the users and children tables owned by the wider system.
type PostgresDirectoryRepository struct {
	db *sql.DB
}

func NewPostgresDirectoryRepository(db *sql.DB) *PostgresDirectoryRepository {
	return &PostgresDirectoryRepository{db: db}
}

func (r *PostgresDirectoryRepository) GetUser(ctx context.Context, id string) (*directory.User, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(role, ''), organization_id::text
               FROM users WHERE id = $1`
	u := &directory.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.OrganizationID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, directory.ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by ID: %w", err)
	}
	return u, nil
}

func (r *PostgresDirectoryRepository) GetChild(ctx context.Context, id string) (*directory.Child, error) {
	query := `SELECT id, name, grade, birth_date FROM children WHERE id = $1`
	c := &directory.Child{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.Grade, &c.BirthDate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, directory.ErrChildNotFound
		}
		return nil, fmt.Errorf("error getting child by ID: %w", err)
	}
	return c, nil
}

func (r *PostgresDirectoryRepository) ListUsersByOrganization(ctx context.Context, organizationID string) ([]*directory.User, error) {
	query := `SELECT id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(role, ''), organization_id::text
               FROM users WHERE organization_id = $1 ORDER BY name`
	rows, err := r.db.QueryContext(ctx, query, organizationID)
	if err != nil {
		return nil, fmt.Errorf("error listing organization users: %w", err)
	}
	defer rows.Close()

	users := make([]*directory.User, 0)
	for rows.Next() {
		u := &directory.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.OrganizationID); err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// ResolvePrincipal returns the first principal of the organization.
func (r *PostgresDirectoryRepository) ResolvePrincipal(ctx context.Context, organizationID string) (string, error) {
	query := `SELECT id FROM users WHERE organization_id = $1 AND role = $2 ORDER BY id LIMIT 1`
	var id string
	err := r.db.QueryRowContext(ctx, query, organizationID, directory.RolePrincipal).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", directory.ErrNoPrincipal
		}
		return "", fmt.Errorf("error resolving principal: %w", err)
	}
	return id, nil
}
