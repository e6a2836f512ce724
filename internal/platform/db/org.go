package db

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	OrgSlugKey contextKey = "org_slug"
	DBConnKey  contextKey = "db_conn"
	DBTxKey    contextKey = "db_tx"
)

var orgSlugPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// OrgMiddleware scopes every request to the clinic's own Postgres schema.
// The org slug comes from the JWT claim set by the auth middleware, then the
// X-Org-ID header, then the configured default. All per-clinic tables live in
// org_<slug>; shared tables (users, organizations, memberships) stay visible
// through the search_path.
func OrgMiddleware(pool *pgxpool.Pool, defaultOrg string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			slug := extractOrgSlug(c, defaultOrg)

			if !orgSlugPattern.MatchString(slug) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid organization identifier")
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			schema := fmt.Sprintf("org_%s", slug)
			_, err = conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, shared, public", schema))
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "organization resolution failed")
			}

			ctx = context.WithValue(ctx, OrgSlugKey, slug)
			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("org_slug", slug)
			c.Set("db", conn)

			return next(c)
		}
	}
}

func extractOrgSlug(c echo.Context, defaultOrg string) string {
	// 1. Check JWT claim (set by auth middleware)
	if slug, ok := c.Get("jwt_org_slug").(string); ok && slug != "" {
		return slug
	}

	// 2. Check X-Org-ID header
	if slug := c.Request().Header.Get("X-Org-ID"); slug != "" {
		return slug
	}

	return defaultOrg
}

// ConnFromContext retrieves the org-scoped database connection from context.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}

// OrgFromContext retrieves the org slug from context.
func OrgFromContext(ctx context.Context) string {
	slug, _ := ctx.Value(OrgSlugKey).(string)
	return slug
}

// TxFromContext retrieves an in-flight transaction from context, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// WithTx begins a transaction on the org-scoped connection and returns a
// derived context carrying it. Repositories pick the transaction up through
// TxFromContext so multi-entity writes stay atomic.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, fmt.Errorf("no org-scoped connection in context")
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}
	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// WithOrgConn acquires a connection scoped to an org schema for work that
// runs outside the request cycle (workers, CLI commands). The caller must
// invoke the release func when done.
func WithOrgConn(ctx context.Context, pool *pgxpool.Pool, slug string) (context.Context, func(), error) {
	if !orgSlugPattern.MatchString(slug) {
		return ctx, nil, fmt.Errorf("invalid organization identifier: %s", slug)
	}
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("acquire connection: %w", err)
	}
	schema := fmt.Sprintf("org_%s", slug)
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET search_path TO %s, shared, public", schema)); err != nil {
		conn.Release()
		return ctx, nil, fmt.Errorf("set search path: %w", err)
	}
	ctx = context.WithValue(ctx, OrgSlugKey, slug)
	ctx = context.WithValue(ctx, DBConnKey, conn)
	return ctx, conn.Release, nil
}

// CreateOrgSchema creates a new schema for a clinic and runs all migrations
// against it. If migrationsDir is empty, migrations are skipped.
func CreateOrgSchema(ctx context.Context, pool *pgxpool.Pool, slug string, migrationsDir string) error {
	if !orgSlugPattern.MatchString(slug) {
		return fmt.Errorf("invalid organization identifier: %s", slug)
	}

	schema := fmt.Sprintf("org_%s", slug)

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema))
	if err != nil {
		return fmt.Errorf("create schema %s: %w", schema, err)
	}

	if migrationsDir != "" {
		migrator := NewMigrator(pool, migrationsDir)
		if _, err := migrator.Up(ctx, schema); err != nil {
			return fmt.Errorf("run migrations for %s: %w", schema, err)
		}
	}

	return nil
}
