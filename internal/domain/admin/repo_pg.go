package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Organization Repository ===========

// Organizations, users and memberships live in the shared schema with
// qualified table names, so these repos go straight to the pool and ignore
// the per-request org connection.

type orgRepoPG struct{ pool *pgxpool.Pool }

func NewOrgRepoPG(pool *pgxpool.Pool) OrgRepository { return &orgRepoPG{pool: pool} }

const orgCols = `id, slug, name, phone, email, address, active, created_at, updated_at`

func (r *orgRepoPG) scanOrg(row pgx.Row) (*Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Slug, &o.Name, &o.Phone, &o.Email, &o.Address, &o.Active,
		&o.CreatedAt, &o.UpdatedAt)
	return &o, err
}

func (r *orgRepoPG) Create(ctx context.Context, o *Organization) error {
	o.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shared.organizations (id, slug, name, phone, email, address, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		o.ID, o.Slug, o.Name, o.Phone, o.Email, o.Address, o.Active)
	return err
}

func (r *orgRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return r.scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgCols+` FROM shared.organizations WHERE id = $1`, id))
}

func (r *orgRepoPG) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	return r.scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgCols+` FROM shared.organizations WHERE slug = $1`, slug))
}

func (r *orgRepoPG) Update(ctx context.Context, o *Organization) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE shared.organizations SET name=$2, phone=$3, email=$4, address=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		o.ID, o.Name, o.Phone, o.Email, o.Address, o.Active)
	return err
}

func (r *orgRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM shared.organizations WHERE id = $1`, id)
	return err
}

func (r *orgRepoPG) List(ctx context.Context) ([]*Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgCols+` FROM shared.organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orgs := []*Organization{}
	for rows.Next() {
		o, err := r.scanOrg(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

const userCols = `id, email, password_hash, full_name, phone, active, created_at, updated_at`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Phone, &u.Active,
		&u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shared.users (id, email, password_hash, full_name, phone, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Phone, u.Active)
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM shared.users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM shared.users WHERE lower(email) = lower($1)`, email))
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE shared.users SET email=$2, password_hash=$3, full_name=$4, phone=$5, active=$6, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Email, u.PasswordHash, u.FullName, u.Phone, u.Active)
	return err
}

func (r *userRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM shared.users WHERE id = $1`, id)
	return err
}

func (r *userRepoPG) List(ctx context.Context, limit, offset int) ([]*User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM shared.users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+userCols+` FROM shared.users ORDER BY full_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []*User{}
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// =========== Membership Repository ===========

type membershipRepoPG struct{ pool *pgxpool.Pool }

func NewMembershipRepoPG(pool *pgxpool.Pool) MembershipRepository { return &membershipRepoPG{pool: pool} }

func (r *membershipRepoPG) Upsert(ctx context.Context, m *Membership) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO shared.memberships (user_id, org_id, role)
		VALUES ($1,$2,$3)
		ON CONFLICT (user_id, org_id) DO UPDATE SET role = EXCLUDED.role`,
		m.UserID, m.OrgID, m.Role)
	return err
}

func (r *membershipRepoPG) Delete(ctx context.Context, userID, orgID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM shared.memberships WHERE user_id = $1 AND org_id = $2`, userID, orgID)
	return err
}

func (r *membershipRepoPG) Get(ctx context.Context, userID, orgID uuid.UUID) (*Membership, error) {
	var m Membership
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, org_id, role FROM shared.memberships WHERE user_id = $1 AND org_id = $2`,
		userID, orgID).Scan(&m.UserID, &m.OrgID, &m.Role)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepoPG) ListByUser(ctx context.Context, userID uuid.UUID) ([]*OrgMembership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.org_id, o.slug, o.name, m.role
		FROM shared.memberships m
		JOIN shared.organizations o ON o.id = m.org_id
		WHERE m.user_id = $1 AND o.active
		ORDER BY o.name`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memberships := []*OrgMembership{}
	for rows.Next() {
		var m OrgMembership
		if err := rows.Scan(&m.OrgID, &m.OrgSlug, &m.OrgName, &m.Role); err != nil {
			return nil, err
		}
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

func (r *membershipRepoPG) ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*Membership, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, org_id, role FROM shared.memberships WHERE org_id = $1`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	memberships := []*Membership{}
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.UserID, &m.OrgID, &m.Role); err != nil {
			return nil, err
		}
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

// =========== Variable Repository ===========

// Variables live in the org schema, so this repo follows the per-request
// connection like the clinical repos do.

type variableRepoPG struct{ pool *pgxpool.Pool }

func NewVariableRepoPG(pool *pgxpool.Pool) VariableRepository { return &variableRepoPG{pool: pool} }

func (r *variableRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *variableRepoPG) Set(ctx context.Context, key, value string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO organization_variables (key, value, updated_at)
		VALUES ($1,$2,NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, value)
	return err
}

func (r *variableRepoPG) Get(ctx context.Context, key string) (*OrgVariable, error) {
	var v OrgVariable
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT key, value, updated_at FROM organization_variables WHERE key = $1`, key).
		Scan(&v.Key, &v.Value, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variableRepoPG) List(ctx context.Context) ([]*OrgVariable, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT key, value, updated_at FROM organization_variables ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vars := []*OrgVariable{}
	for rows.Next() {
		var v OrgVariable
		if err := rows.Scan(&v.Key, &v.Value, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vars = append(vars, &v)
	}
	return vars, rows.Err()
}

func (r *variableRepoPG) Delete(ctx context.Context, key string) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM organization_variables WHERE key = $1`, key)
	return err
}
