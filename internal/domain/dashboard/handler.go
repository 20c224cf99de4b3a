package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinsuite/agenda/internal/platform/auth"
)

type Handler struct {
	svc *Service
	loc *time.Location
}

func NewHandler(svc *Service, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{svc: svc, loc: loc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/dashboard", h.Snapshot,
		auth.RequireRole(auth.RoleReceptionist, auth.RoleProfessional))
}

func (h *Handler) Snapshot(c echo.Context) error {
	day := time.Now().In(h.loc)
	if v := c.QueryParam("date"); v != "" {
		parsed, err := time.ParseInLocation("2006-01-02", v, h.loc)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		day = parsed
	}

	var scope Scope
	if id, ok, err := queryID(c, "professional_id"); err != nil {
		return err
	} else if ok {
		scope.ProfessionalID = &id
	}
	if id, ok, err := queryID(c, "room_id"); err != nil {
		return err
	} else if ok {
		scope.RoomID = &id
	}

	snap, err := h.svc.Snapshot(c.Request().Context(), day, scope)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

func queryID(c echo.Context, name string) (int64, bool, error) {
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
