package admin

import (
	"context"

	"github.com/google/uuid"
)

// OrgRepository persists organizations in the shared schema.
type OrgRepository interface {
	Create(ctx context.Context, o *Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Organization, error)
	GetBySlug(ctx context.Context, slug string) (*Organization, error)
	Update(ctx context.Context, o *Organization) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Organization, error)
}

// UserRepository persists users in the shared schema.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*User, int, error)
}

// MembershipRepository links users to organizations with a role.
type MembershipRepository interface {
	Upsert(ctx context.Context, m *Membership) error
	Delete(ctx context.Context, userID, orgID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*OrgMembership, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*Membership, error)
	Get(ctx context.Context, userID, orgID uuid.UUID) (*Membership, error)
}

// VariableRepository stores per-org settings inside the org schema.
type VariableRepository interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (*OrgVariable, error)
	List(ctx context.Context) ([]*OrgVariable, error)
	Delete(ctx context.Context, key string) error
}
