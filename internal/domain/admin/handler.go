package admin

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterAuthRoutes mounts the endpoints that run before a JWT exists.
func (h *Handler) RegisterAuthRoutes(public *echo.Group) {
	public.POST("/auth/login", h.Login)
	public.POST("/auth/select-org", h.SelectOrg)
}

// RegisterRoutes mounts the authenticated admin surface.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/auth/me", h.Me)

	g := api.Group("", auth.RequireRole(auth.RoleAdmin))
	g.POST("/organizations", h.CreateOrganization)
	g.GET("/organizations", h.ListOrganizations)
	g.GET("/organizations/:id", h.GetOrganization)
	g.PUT("/organizations/:id", h.UpdateOrganization)
	g.DELETE("/organizations/:id", h.DeleteOrganization)
	g.GET("/organizations/current/variables", h.ListVariables)
	g.PUT("/organizations/current/variables", h.SetVariables)

	g.POST("/users", h.CreateUser)
	g.GET("/users", h.ListUsers)
	g.GET("/users/:id", h.GetUser)
	g.PUT("/users/:id", h.UpdateUser)
	g.DELETE("/users/:id", h.DeleteUser)
	g.PUT("/users/:id/password", h.SetPassword)
	g.PUT("/users/:id/role", h.AssignRole)
	g.DELETE("/users/:id/role", h.RevokeMembership)
}

// -- Auth --

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	result, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

type selectOrgRequest struct {
	OrgSlug string `json:"org_slug"`
}

func (h *Handler) SelectOrg(c echo.Context) error {
	var req selectOrgRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	tokenStr := bearerToken(c)
	if tokenStr == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
	}
	token, err := h.svc.SelectOrg(c.Request().Context(), tokenStr, req.OrgSlug)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) Me(c echo.Context) error {
	userID, err := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid user")
	}
	u, memberships, err := h.svc.Me(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"user":          u,
		"organizations": memberships,
	})
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// -- Organizations --

func (h *Handler) CreateOrganization(c echo.Context) error {
	var o Organization
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateOrganization(c.Request().Context(), &o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetOrganization(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.svc.GetOrganization(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "organization not found")
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) UpdateOrganization(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var o Organization
	if err := c.Bind(&o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	o.ID = id
	if err := h.svc.UpdateOrganization(c.Request().Context(), &o); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) DeleteOrganization(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteOrganization(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListOrganizations(c echo.Context) error {
	orgs, err := h.svc.ListOrganizations(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, orgs)
}

// -- Users --

type userRequest struct {
	User
	Password string `json:"password,omitempty"`
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req userRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateUser(c.Request().Context(), &req.User, req.Password); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, req.User)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var u User
	if err := c.Bind(&u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u.ID = id
	if err := h.svc.UpdateUser(c.Request().Context(), &u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteUser(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListUsers(c echo.Context) error {
	pg := pagination.FromContext(c)
	users, total, err := h.svc.ListUsers(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(users, total, pg.Limit, pg.Offset))
}

type passwordRequest struct {
	Password string `json:"password"`
}

func (h *Handler) SetPassword(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req passwordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetPassword(c.Request().Context(), id, req.Password); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

type roleRequest struct {
	OrgID uuid.UUID `json:"org_id"`
	Role  string    `json:"role"`
}

func (h *Handler) AssignRole(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.AssignRole(c.Request().Context(), id, req.OrgID, req.Role); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) RevokeMembership(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req roleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.RevokeMembership(c.Request().Context(), id, req.OrgID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// -- Variables --

func (h *Handler) ListVariables(c echo.Context) error {
	vars, err := h.svc.ListVariables(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, vars)
}

type variablesRequest struct {
	Variables map[string]string `json:"variables"`
}

func (h *Handler) SetVariables(c echo.Context) error {
	var req variablesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ctx := c.Request().Context()
	for key, value := range req.Variables {
		if err := h.svc.SetVariable(ctx, key, value); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	vars, err := h.svc.ListVariables(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, vars)
}
