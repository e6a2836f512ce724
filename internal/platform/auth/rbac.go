package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// The three clinic roles. Admin implies everything.
const (
	RoleAdmin     = "admin"
	RoleDentist   = "dentist"
	RoleSecretary = "secretary"
)

// ValidRole reports whether the given role name is one of the clinic roles.
func ValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleDentist, RoleSecretary:
		return true
	}
	return false
}

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. Admin always passes.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == RoleAdmin {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}
