package directory

import (
	"context"
)

// Repository reads users and children owned by the rest of the system.
type Repository interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetChild(ctx context.Context, id string) (*Child, error)
	ListUsersByOrganization(ctx context.Context, organizationID string) ([]*User, error)
}

// PrincipalResolver maps an organization to the user who receives peer-review notifications.
type PrincipalResolver interface {
	// ResolvePrincipal returns ErrNoPrincipal when the organization has none.
	ResolvePrincipal(ctx context.Context, organizationID string) (string, error)
}
