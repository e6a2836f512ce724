package admin

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant. Its slug names the Postgres schema
// (org_<slug>) that holds all of its clinical data.
type Organization struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Slug      string    `db:"slug" json:"slug"`
	Name      string    `db:"name" json:"name"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// User is a shared identity that may belong to several organizations.
type User struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Membership grants a user one role in one organization.
type Membership struct {
	UserID uuid.UUID `db:"user_id" json:"user_id"`
	OrgID  uuid.UUID `db:"org_id" json:"org_id"`
	Role   string    `db:"role" json:"role"`
}

// OrgMembership is a membership joined with the organization it points at,
// as returned by login.
type OrgMembership struct {
	OrgID   uuid.UUID `json:"org_id"`
	OrgSlug string    `json:"org_slug"`
	OrgName string    `json:"org_name"`
	Role    string    `json:"role"`
}

// OrgVariable is a per-organization setting (currency, gateway config).
// It lives in the org schema, not the shared one.
type OrgVariable struct {
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
