package order

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/wardflow/wardflow/internal/domain/nursingtask"
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
	read := api.Group("", auth.RequireRole(auth.RoleDoctor, auth.RoleNurse))
	read.GET("/orders", h.List)
	read.GET("/orders/:id", h.Get)
	read.GET("/orders/:id/tasks", h.Tasks)

	write := api.Group("", auth.RequireRole(auth.RoleDoctor))
	write.POST("/orders", h.Create)
	write.POST("/orders/:id/cancel", h.Cancel)
}

// createResponse is the fanout result: the order plus the tasks derived
// from its kind template.
type createResponse struct {
	Order *Order              `json:"order"`
	Tasks []*nursingtask.Task `json:"tasks"`
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.AdmissionID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "admission_id is required")
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	o, tasks, err := h.svc.CreateOrder(c.Request().Context(), in, actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, createResponse{Order: o, Tasks: tasks})
}

type cancelRequest struct {
	Notes *string `json:"notes"`
}

type cancelResponse struct {
	Order            *Order      `json:"order"`
	CancelledTaskIDs []uuid.UUID `json:"cancelled_task_ids"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	o, taskIDs, err := h.svc.CancelOrder(c.Request().Context(), id, req.Notes, actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, cancelResponse{Order: o, CancelledTaskIDs: taskIDs})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	o, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) Tasks(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}
	tasks, err := h.svc.Tasks(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, tasks)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	var f ListFilter
	if admissionID := c.QueryParam("admission_id"); admissionID != "" {
		aid, err := uuid.Parse(admissionID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid admission_id")
		}
		f.AdmissionID = &aid
	}
	if patientID := c.QueryParam("patient_id"); patientID != "" {
		pid, err := uuid.Parse(patientID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &pid
	}
	f.Kind = c.QueryParam("kind")
	f.Status = c.QueryParam("status")

	orders, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(orders, total, pg.Limit, pg.Offset))
}
