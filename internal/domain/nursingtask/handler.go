package nursingtask

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardflow/wardflow/internal/platform/apperr"
	"github.com/wardflow/wardflow/internal/platform/auth"
	"github.com/wardflow/wardflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	nurse := api.Group("", auth.RequireRole(auth.RoleNurse))
	nurse.GET("/tasks", h.Queue)
	nurse.POST("/tasks/:id/start", h.Start)
	nurse.POST("/tasks/:id/complete", h.Complete)

	read := api.Group("", auth.RequireRole(auth.RoleNurse, auth.RoleDoctor))
	read.GET("/tasks/:id", h.Get)
}

func (h *Handler) Start(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}

	nurse := auth.UserIDFromContext(c.Request().Context())
	t, err := h.svc.Start(c.Request().Context(), id, nurse)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

type completeRequest struct {
	Note *string `json:"note"`
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}
	var req completeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	nurse := auth.UserIDFromContext(c.Request().Context())
	t, err := h.svc.Complete(c.Request().Context(), id, nurse, req.Note)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}
	t, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Queue(c echo.Context) error {
	pg := pagination.FromContext(c)
	nurse := auth.UserIDFromContext(c.Request().Context())

	tasks, total, err := h.svc.Queue(c.Request().Context(), nurse, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(tasks, total, pg.Limit, pg.Offset))
}
