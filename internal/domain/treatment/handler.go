package treatment

import (
	"net/http"
	"strconv"

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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Catalog reads – all clinic roles
	catalogRead := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDentist, auth.RoleSecretary))
	catalogRead.GET("/treatment-categories", h.ListCategories)
	catalogRead.GET("/treatment-categories/:id", h.GetCategory)
	catalogRead.GET("/treatment-types", h.ListTypes)
	catalogRead.GET("/treatment-types/:id", h.GetType)
	catalogRead.GET("/treatment-types/:id/price", h.ResolvePrice)

	// Catalog writes – admin only
	catalogWrite := api.Group("", auth.RequireRole(auth.RoleAdmin))
	catalogWrite.POST("/treatment-categories", h.CreateCategory)
	catalogWrite.PUT("/treatment-categories/:id", h.UpdateCategory)
	catalogWrite.DELETE("/treatment-categories/:id", h.DeleteCategory)
	catalogWrite.POST("/treatment-types", h.CreateType)
	catalogWrite.PUT("/treatment-types/:id", h.UpdateType)
	catalogWrite.DELETE("/treatment-types/:id", h.DeleteType)

	// Treatments – admin, dentist
	clinical := api.Group("", auth.RequireRole(auth.RoleAdmin, auth.RoleDentist))
	clinical.POST("/treatments", h.CreateTreatment)
	clinical.POST("/treatments/quote", h.QuoteTreatment)
	clinical.GET("/treatments", h.ListTreatments)
	clinical.GET("/treatments/:id", h.GetTreatment)
	clinical.PUT("/treatments/:id", h.UpdateTreatment)
	clinical.PUT("/treatments/:id/status", h.ChangeStatus)
	clinical.DELETE("/treatments/:id", h.DeleteTreatment)
}

// -- Category Handlers --

func (h *Handler) CreateCategory(c echo.Context) error {
	var cat TreatmentCategory
	if err := c.Bind(&cat); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateCategory(c.Request().Context(), &cat); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, cat)
}

func (h *Handler) GetCategory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cat, err := h.svc.GetCategory(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "category not found")
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *Handler) UpdateCategory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var cat TreatmentCategory
	if err := c.Bind(&cat); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cat.ID = id
	if err := h.svc.UpdateCategory(c.Request().Context(), &cat); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *Handler) DeleteCategory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteCategory(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListCategories(c echo.Context) error {
	items, err := h.svc.ListCategories(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

// -- Type Handlers --

func (h *Handler) CreateType(c echo.Context) error {
	var t TreatmentType
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateType(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *Handler) GetType(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetType(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "treatment type not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateType(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var t TreatmentType
	if err := c.Bind(&t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t.ID = id
	if err := h.svc.UpdateType(c.Request().Context(), &t); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) DeleteType(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteType(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListTypes(c echo.Context) error {
	var categoryID *uuid.UUID
	if v := c.QueryParam("category_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid category_id")
		}
		categoryID = &id
	}
	items, err := h.svc.ListTypes(c.Request().Context(), categoryID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ResolvePrice(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tooth, err := strconv.Atoi(c.QueryParam("tooth"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "tooth query parameter is required")
	}
	price, err := h.svc.ResolvePrice(c.Request().Context(), id, tooth)
	if err != nil {
		if err == ErrNoPriceRule {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"tooth": tooth, "price": price})
}

// -- Treatment Handlers --

type treatmentRequest struct {
	Treatment
	DiscountInput DiscountInput `json:"discount_input"`
}

func (h *Handler) CreateTreatment(c echo.Context) error {
	var req treatmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateTreatment(c.Request().Context(), &req.Treatment, req.DiscountInput); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, req.Treatment)
}

type quoteRequest struct {
	TreatmentTypeID uuid.UUID     `json:"treatment_type_id"`
	ToothNumbers    []int         `json:"tooth_numbers"`
	DiscountInput   DiscountInput `json:"discount_input"`
}

func (h *Handler) QuoteTreatment(c echo.Context) error {
	var req quoteRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	q, err := h.svc.QuoteType(c.Request().Context(), req.TreatmentTypeID, req.ToothNumbers, req.DiscountInput)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, q)
}

func (h *Handler) GetTreatment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.GetTreatment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) UpdateTreatment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req treatmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Treatment.ID = id
	if err := h.svc.UpdateTreatment(c.Request().Context(), &req.Treatment, req.DiscountInput); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, req.Treatment)
}

func (h *Handler) DeleteTreatment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteTreatment(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListTreatments(c echo.Context) error {
	pg := pagination.FromContext(c)
	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		items, total, err := h.svc.ListTreatmentsByPatient(c.Request().Context(), pid, pg.Limit, pg.Offset)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
	}
	items, total, err := h.svc.ListTreatments(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.ChangeStatus(c.Request().Context(), id, req.Status); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	t, err := h.svc.GetTreatment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "treatment not found")
	}
	return c.JSON(http.StatusOK, t)
}
