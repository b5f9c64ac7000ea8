package stock

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
	read := api.Group("", auth.RequireRole(auth.RolePharmacist, auth.RoleNurse, auth.RoleInventoryApprover))
	read.GET("/stock/requests", h.ListRequests)
	read.GET("/stock/requests/:id", h.GetRequest)
	read.GET("/stock/requests/:id/lines", h.Lines)
	read.GET("/stock/warehouses/:id/balances", h.Balances)
	read.GET("/stock/warehouses/:id/moves", h.Moves)

	write := api.Group("", auth.RequireRole(auth.RolePharmacist, auth.RoleNurse))
	write.POST("/stock/requests", h.CreateRequest)
	write.POST("/stock/requests/:id/lines", h.AddLine)
	write.PATCH("/stock/requests/:id/lines/:lineId", h.UpdateLine)
	write.DELETE("/stock/requests/:id/lines/:lineId", h.RemoveLine)
	write.POST("/stock/requests/:id/submit", h.Submit)
	write.POST("/stock/requests/:id/cancel", h.Cancel)

	decide := api.Group("", auth.RequireRole(auth.RoleInventoryApprover))
	decide.POST("/stock/requests/:id/approve", h.Approve)
	decide.POST("/stock/requests/:id/reject", h.Reject)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	var in CreateRequestInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	req, err := h.svc.CreateRequest(c.Request().Context(), in, actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, req)
}

func (h *Handler) AddLine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	var in LineInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.DrugID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "drug_id is required")
	}

	l, err := h.svc.AddLine(c.Request().Context(), id, in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *Handler) UpdateLine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid line id")
	}
	var in LineInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.DrugID == uuid.Nil {
		return echo.NewHTTPError(http.StatusBadRequest, "drug_id is required")
	}

	l, err := h.svc.UpdateLine(c.Request().Context(), id, lineID, in)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, l)
}

func (h *Handler) RemoveLine(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	lineID, err := uuid.Parse(c.Param("lineId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid line id")
	}

	if err := h.svc.RemoveLine(c.Request().Context(), id, lineID); err != nil {
		return apperr.HTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Submit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}

	req, err := h.svc.Submit(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, req)
}

type decisionRequest struct {
	Reason *string `json:"reason"`
}

// approveResponse carries the realized ledger entries alongside the decided
// request.
type approveResponse struct {
	Request *Request `json:"request"`
	Moves   []*Move  `json:"moves"`
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	var in decisionRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	req, moves, err := h.svc.Approve(c.Request().Context(), id, in.Reason, actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, approveResponse{Request: req, Moves: moves})
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	var in decisionRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	req, err := h.svc.Reject(c.Request().Context(), id, in.Reason, actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	req, err := h.svc.CancelRequest(c.Request().Context(), id, actor)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	req, err := h.svc.GetRequest(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, req)
}

func (h *Handler) ListRequests(c echo.Context) error {
	pg := pagination.FromContext(c)

	f := RequestFilter{
		Kind:   c.QueryParam("kind"),
		Status: c.QueryParam("status"),
	}
	requests, total, err := h.svc.ListRequests(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(requests, total, pg.Limit, pg.Offset))
}

func (h *Handler) Lines(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request id")
	}
	lines, err := h.svc.Lines(c.Request().Context(), id)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, lines)
}

func (h *Handler) Balances(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid warehouse id")
	}
	pg := pagination.FromContext(c)

	balances, total, err := h.svc.Balances(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(balances, total, pg.Limit, pg.Offset))
}

func (h *Handler) Moves(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid warehouse id")
	}
	pg := pagination.FromContext(c)

	f := MoveFilter{WarehouseID: id}
	if drugID := c.QueryParam("drug_id"); drugID != "" {
		did, err := uuid.Parse(drugID)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid drug_id")
		}
		f.DrugID = &did
	}

	moves, total, err := h.svc.Moves(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return apperr.HTTPError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(moves, total, pg.Limit, pg.Offset))
}
