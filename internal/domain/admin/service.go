package admin

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/db"
)

// slugPattern keeps org slugs safe to embed in a schema name.
var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,30}$`)

// SchemaProvisioner creates the per-org database schema when an
// organization is created.
type SchemaProvisioner interface {
	CreateOrgSchema(ctx context.Context, slug string) error
}

type Service struct {
	orgs        OrgRepository
	users       UserRepository
	memberships MembershipRepository
	variables   VariableRepository
	provisioner SchemaProvisioner
	jwtCfg      auth.JWTConfig
}

func NewService(orgs OrgRepository, users UserRepository, memberships MembershipRepository,
	variables VariableRepository, provisioner SchemaProvisioner, jwtCfg auth.JWTConfig) *Service {
	return &Service{
		orgs:        orgs,
		users:       users,
		memberships: memberships,
		variables:   variables,
		provisioner: provisioner,
		jwtCfg:      jwtCfg,
	}
}

// -- Organizations --

func (s *Service) CreateOrganization(ctx context.Context, o *Organization) error {
	o.Slug = strings.ToLower(strings.TrimSpace(o.Slug))
	if !slugPattern.MatchString(o.Slug) {
		return fmt.Errorf("invalid slug: must be lowercase letters, digits and underscores")
	}
	if o.Name == "" {
		return fmt.Errorf("name is required")
	}
	o.Active = true
	if err := s.orgs.Create(ctx, o); err != nil {
		return err
	}
	if s.provisioner != nil {
		return s.provisioner.CreateOrgSchema(ctx, o.Slug)
	}
	return nil
}

func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (*Organization, error) {
	return s.orgs.GetByID(ctx, id)
}

func (s *Service) UpdateOrganization(ctx context.Context, o *Organization) error {
	if o.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.orgs.Update(ctx, o)
}

func (s *Service) DeleteOrganization(ctx context.Context, id uuid.UUID) error {
	return s.orgs.Delete(ctx, id)
}

func (s *Service) ListOrganizations(ctx context.Context) ([]*Organization, error) {
	return s.orgs.List(ctx)
}

// -- Users --

func (s *Service) CreateUser(ctx context.Context, u *User, password string) error {
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return fmt.Errorf("valid email is required")
	}
	if u.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.Active = true
	return s.users.Create(ctx, u)
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) UpdateUser(ctx context.Context, u *User) error {
	old, err := s.users.GetByID(ctx, u.ID)
	if err != nil {
		return err
	}
	if u.Email == "" || !strings.Contains(u.Email, "@") {
		return fmt.Errorf("valid email is required")
	}
	if u.FullName == "" {
		return fmt.Errorf("full_name is required")
	}
	u.PasswordHash = old.PasswordHash
	return s.users.Update(ctx, u)
}

func (s *Service) SetPassword(ctx context.Context, id uuid.UUID, password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return s.users.Update(ctx, u)
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.users.Delete(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.List(ctx, limit, offset)
}

// AssignRole grants or changes a user's role in an organization.
func (s *Service) AssignRole(ctx context.Context, userID, orgID uuid.UUID, role string) error {
	if !auth.ValidRole(role) {
		return fmt.Errorf("invalid role: %s", role)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return fmt.Errorf("user lookup: %w", err)
	}
	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		return fmt.Errorf("organization lookup: %w", err)
	}
	return s.memberships.Upsert(ctx, &Membership{UserID: userID, OrgID: orgID, Role: role})
}

func (s *Service) RevokeMembership(ctx context.Context, userID, orgID uuid.UUID) error {
	return s.memberships.Delete(ctx, userID, orgID)
}

// -- Auth --

// LoginResult carries the selection token and the organizations the user may
// enter.
type LoginResult struct {
	Token         string           `json:"token"`
	User          *User            `json:"user"`
	Organizations []*OrgMembership `json:"organizations"`
}

// Login checks credentials and mints a short-lived selection token. The full
// org-scoped token is only issued by SelectOrg.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	if !u.Active {
		return nil, fmt.Errorf("account is disabled")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("invalid credentials")
	}
	memberships, err := s.memberships.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, fmt.Errorf("user belongs to no organization")
	}
	token, err := auth.IssueSelectionToken(s.jwtCfg, u.ID.String())
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: u, Organizations: memberships}, nil
}

// SelectOrg exchanges a valid token for an org-scoped access token, provided
// the user is a member of the requested organization.
func (s *Service) SelectOrg(ctx context.Context, tokenStr, orgSlug string) (string, error) {
	claims, err := auth.ParseToken(s.jwtCfg, tokenStr)
	if err != nil {
		return "", fmt.Errorf("invalid token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", fmt.Errorf("invalid token subject")
	}
	org, err := s.orgs.GetBySlug(ctx, orgSlug)
	if err != nil {
		return "", fmt.Errorf("organization not found")
	}
	if !org.Active {
		return "", fmt.Errorf("organization is disabled")
	}
	m, err := s.memberships.Get(ctx, userID, org.ID)
	if err != nil {
		return "", fmt.Errorf("not a member of %s", orgSlug)
	}
	return auth.IssueOrgToken(s.jwtCfg, userID.String(), org.Slug, []string{m.Role})
}

// Me returns the authenticated user's profile with their memberships.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*User, []*OrgMembership, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	memberships, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return u, memberships, nil
}

// -- Variables --

func (s *Service) SetVariable(ctx context.Context, key, value string) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	return s.variables.Set(ctx, key, value)
}

func (s *Service) GetVariable(ctx context.Context, key string) (*OrgVariable, error) {
	return s.variables.Get(ctx, key)
}

func (s *Service) ListVariables(ctx context.Context) ([]*OrgVariable, error) {
	return s.variables.List(ctx)
}

func (s *Service) DeleteVariable(ctx context.Context, key string) error {
	return s.variables.Delete(ctx, key)
}

// ClinicName returns the display name of the organization the context is
// scoped to. The clinic_name org variable overrides the organization
// record, so clinics can sign messages with a name that differs from the
// registered one.
func (s *Service) ClinicName(ctx context.Context) (string, error) {
	if v, err := s.variables.Get(ctx, "clinic_name"); err == nil && v.Value != "" {
		return v.Value, nil
	}
	org, err := s.orgs.GetBySlug(ctx, db.OrgFromContext(ctx))
	if err != nil {
		return "", fmt.Errorf("organization lookup: %w", err)
	}
	return org.Name, nil
}
