package agenda

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinsuite/agenda/internal/platform/auth"
	"github.com/clinsuite/agenda/internal/platform/telemetry"
	"github.com/clinsuite/agenda/pkg/pagination"
)

type Handler struct {
	svc     *Service
	metrics *telemetry.Provider
	loc     *time.Location
}

func NewHandler(svc *Service, metrics *telemetry.Provider, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, metrics: metrics, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	staff := api.Group("", auth.RequireRole(auth.RoleReceptionist, auth.RoleProfessional))
	staff.GET("/availability", h.Availability)
	staff.GET("/bookings", h.ListBookings)
	staff.GET("/bookings/:id", h.GetBooking)
	staff.GET("/bookings/:id/history", h.GetHistory)
	staff.GET("/blocks", h.ListBlocks)
	staff.POST("/bookings", h.CreateBooking)
	staff.POST("/bookings/:id/transition", h.Transition)
	staff.POST("/bookings/:id/cancel", h.Cancel)
	staff.POST("/bookings/:id/reschedule", h.Reschedule)

	admin := api.Group("", auth.RequireRole(auth.RoleAdmin))
	admin.POST("/blocks", h.CreateBlock)
	admin.PATCH("/blocks/:id/active", h.SetBlockActive)
	admin.PUT("/professionals/:id/working-hours", h.SetWeeklyHours)
	admin.PUT("/professionals/:id/working-hours/exceptions", h.SetHoursException)
	staff.GET("/professionals/:id/working-hours", h.GetWorkingHours)
}

// errorResponse is the stable error envelope for scheduling failures.
type errorResponse struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
	Report any    `json:"report,omitempty"`
}

// mapError translates the scheduling error taxonomy into HTTP responses.
// Expected outcomes get stable codes and structured detail; anything else
// bubbles up as a 500 without leaking internals.
func mapError(c echo.Context, err error) error {
	var conflict *ConflictError
	switch {
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, errorResponse{
			Code:   "OVERLAP_DETECTED",
			Detail: conflict.Error(),
			Report: conflict.Report,
		})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrEntityNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Detail: err.Error()})
	case errors.Is(err, ErrValidation):
		return c.JSON(http.StatusBadRequest, errorResponse{Code: "VALIDATION_ERROR", Detail: err.Error()})
	case errors.Is(err, ErrEntityInactive):
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Code: "ENTITY_INACTIVE", Detail: err.Error()})
	case errors.Is(err, ErrBlockedBySchedule):
		return c.JSON(http.StatusConflict, errorResponse{Code: "BLOCKED_BY_SCHEDULE", Detail: err.Error()})
	case errors.Is(err, ErrTransitionNotAllowed):
		return c.JSON(http.StatusConflict, errorResponse{Code: "TRANSITION_NOT_ALLOWED", Detail: err.Error()})
	case errors.Is(err, ErrStateTerminal):
		return c.JSON(http.StatusConflict, errorResponse{Code: "STATE_TERMINAL", Detail: err.Error()})
	case errors.Is(err, ErrNotCancellable):
		return c.JSON(http.StatusConflict, errorResponse{Code: "NOT_CANCELLABLE", Detail: err.Error()})
	case errors.Is(err, ErrNotReschedulable):
		return c.JSON(http.StatusConflict, errorResponse{Code: "NOT_RESCHEDULABLE", Detail: err.Error()})
	case errors.Is(err, ErrConcurrentModification):
		return c.JSON(http.StatusConflict, errorResponse{Code: "CONCURRENT_MODIFICATION", Detail: err.Error()})
	}
	return err
}

func parsePathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case isExpected(err):
		return "conflict"
	default:
		return "error"
	}
}

func isExpected(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrEntityNotFound) ||
		errors.Is(err, ErrValidation) || errors.Is(err, ErrEntityInactive) ||
		errors.Is(err, ErrBlockedBySchedule) || errors.Is(err, ErrTransitionNotAllowed) ||
		errors.Is(err, ErrStateTerminal) || errors.Is(err, ErrNotCancellable) ||
		errors.Is(err, ErrNotReschedulable) || errors.Is(err, ErrConcurrentModification)
}

func (h *Handler) CreateBooking(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	booking, err := h.svc.Create(c.Request().Context(), req, actor)
	h.metrics.BookingOperation("create", h.outcome(err))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, booking)
}

func (h *Handler) ListBookings(c echo.Context) error {
	day, err := h.parseDay(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	req := ListRequest{Day: day}
	if id, ok, err := optionalID(c, "professional_id"); err != nil {
		return err
	} else if ok {
		req.ProfessionalID = &id
	}
	if id, ok, err := optionalID(c, "room_id"); err != nil {
		return err
	} else if ok {
		req.RoomID = &id
	}
	if id, ok, err := optionalID(c, "patient_id"); err != nil {
		return err
	} else if ok {
		req.PatientID = &id
	}

	page := pagination.FromContext(c)
	req.Limit = page.Limit
	req.Offset = page.Offset

	bookings, total, err := h.svc.List(c.Request().Context(), req)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(bookings, total, page.Limit, page.Offset))
}

func optionalID(c echo.Context, name string) (int64, bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, true, nil
}

func (h *Handler) GetBooking(c echo.Context) error {
	id, err := parsePathID(c)
	if err != nil {
		return err
	}
	booking, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

func (h *Handler) GetHistory(c echo.Context) error {
	id, err := parsePathID(c)
	if err != nil {
		return err
	}
	entries, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, entries)
}

type transitionRequest struct {
	To   Status  `json:"status"`
	Note *string `json:"note,omitempty"`
}

func (h *Handler) Transition(c echo.Context) error {
	id, err := parsePathID(c)
	if err != nil {
		return err
	}
	var req transitionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	booking, err := h.svc.Transition(c.Request().Context(), id, req.To, req.Note, actor)
	h.metrics.BookingOperation("transition", h.outcome(err))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

type cancelRequest struct {
	Reason CancelReason `json:"reason"`
	Note   *string      `json:"note,omitempty"`
}

func (h *Handler) Cancel(c echo.Context) error {
	id, err := parsePathID(c)
	if err != nil {
		return err
	}
	var req cancelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	actor := auth.UserIDFromContext(c.Request().Context())
	booking, err := h.svc.Cancel(c.Request().Context(), id, req.Reason, req.Note, actor)
	h.metrics.BookingOperation("cancel", h.outcome(err))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, booking)
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := parsePathID(c)
	if err != nil {
		return err
	}
	var req RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.BookingID = id

	actor := auth.UserIDFromContext(c.Request().Context())
	result, err := h.svc.Reschedule(c.Request().Context(), req, actor)
	h.metrics.BookingOperation("reschedule", h.outcome(err))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) Availability(c echo.Context) error {
	professionalID, err := strconv.ParseInt(c.QueryParam("professional_id"), 10, 64)
	if err != nil || professionalID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "professional_id is required")
	}

	day, err := h.parseDay(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}

	req := AvailabilityRequest{ProfessionalID: professionalID, Day: day}
	if v := c.QueryParam("room_id"); v != "" {
		roomID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || roomID <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid room_id")
		}
		req.RoomID = &roomID
	}
	if v := c.QueryParam("duration"); v != "" {
		req.DurationMinutes, _ = strconv.Atoi(v)
	}
	if v := c.QueryParam("interval"); v != "" {
		req.StepMinutes, _ = strconv.Atoi(v)
	}

	slots, err := h.svc.Availability(c.Request().Context(), req)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"slots": slots})
}

func (h *Handler) parseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Now().In(h.loc), nil
	}
	return time.ParseInLocation("2006-01-02", value, h.loc)
}

type blockRequest struct {
	ProfessionalID *int64    `json:"professional_id,omitempty"`
	RoomID         *int64    `json:"room_id,omitempty"`
	StartsAt       time.Time `json:"starts_at"`
	EndsAt         time.Time `json:"ends_at"`
	Reason         *string   `json:"reason,omitempty"`
}

func (h *Handler) CreateBlock(c echo.Context) error {
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	block := &ScheduleBlock{
		ProfessionalID: req.ProfessionalID,
		RoomID:         req.RoomID,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		Reason:         req.Reason,
	}
	if err := h.svc.CreateBlock(c.Request().Context(), block); err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusCreated, block)
}

func (h *Handler) SetBlockActive(c echo.Context) error {
	id, err := parsePathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetBlockActive(c.Request().Context(), id, req.Active); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type weeklyHoursRequest struct {
	Weekly map[time.Weekday][]MinuteRange `json:"weekly"`
}

func (h *Handler) SetWeeklyHours(c echo.Context) error {
	id, err := parsePathID(c)
	if err != nil {
		return err
	}
	var req weeklyHoursRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetWeeklyHours(c.Request().Context(), id, req.Weekly); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type hoursExceptionRequest struct {
	Date   string        `json:"date"`
	Ranges []MinuteRange `json:"ranges"`
}

func (h *Handler) SetHoursException(c echo.Context) error {
	id, err := parsePathID(c)
	if err != nil {
		return err
	}
	var req hoursExceptionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.SetHoursException(c.Request().Context(), id, req.Date, req.Ranges); err != nil {
		return mapError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetWorkingHours(c echo.Context) error {
	id, err := parsePathID(c)
	if err != nil {
		return err
	}
	cfg, err := h.svc.WeeklyHours(c.Request().Context(), id)
	if err != nil {
		return mapError(c, err)
	}
	if cfg == nil {
		return c.JSON(http.StatusOK, map[string]any{
			"weekly":     map[string]any{},
			"exceptions": map[string]any{},
			"default":    DefaultDayWindow,
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"weekly":     cfg.Weekly,
		"exceptions": cfg.Exceptions,
	})
}

func (h *Handler) ListBlocks(c echo.Context) error {
	day, err := h.parseDay(c.QueryParam("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	var professionalID, roomID *int64
	if id, ok, err := optionalID(c, "professional_id"); err != nil {
		return err
	} else if ok {
		professionalID = &id
	}
	if id, ok, err := optionalID(c, "room_id"); err != nil {
		return err
	} else if ok {
		roomID = &id
	}

	blocks, err := h.svc.BlocksForDay(c.Request().Context(), day, professionalID, roomID)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(http.StatusOK, blocks)
}
