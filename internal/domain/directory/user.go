package directory

import (
	"database/sql"
	"errors"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrChildNotFound = errors.New("child not found")
	// ErrNoPrincipal means the organization has no user with the principal role.
	ErrNoPrincipal = errors.New("no principal configured for organization")
)

// Role values as stored in users.role.
const (
	RoleObserver  = "Observer"
	RolePrincipal = "Principal"
)

// User is a person known to the wider system (observer, principal, parent, admin).
// This engine only reads users.
type User struct {
	ID             string
	Name           string
	Email          string
	Role           string
	OrganizationID sql.NullString
}

// Child is the subject of observations.
type Child struct {
	ID        string
	Name      string
	Grade     sql.NullString
	BirthDate sql.NullTime
}
