package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRoles(t *testing.T, roles []string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRequireRole_Allowed(t *testing.T) {
	c := requestWithRoles(t, []string{RoleSecretary})
	handler := RequireRole(RoleSecretary)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := requestWithRoles(t, []string{RoleAdmin})
	handler := RequireRole(RoleDentist)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		t.Errorf("expected admin to pass, got %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	c := requestWithRoles(t, []string{RoleSecretary})
	handler := RequireRole(RoleDentist)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	err := handler(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	c := requestWithRoles(t, nil)
	handler := RequireRole(RoleSecretary)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err == nil {
		t.Error("expected error for empty roles")
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []string{RoleAdmin, RoleDentist, RoleSecretary} {
		if !ValidRole(r) {
			t.Errorf("expected %s to be valid", r)
		}
	}
	for _, r := range []string{"", "billing", "superuser"} {
		if ValidRole(r) {
			t.Errorf("expected %s to be invalid", r)
		}
	}
}
