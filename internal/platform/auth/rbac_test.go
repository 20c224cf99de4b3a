package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func callWithRoles(t *testing.T, mw echo.MiddlewareFunc, roles []string) error {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	return mw(handler)(c)
}

func TestRequireRole_Allows(t *testing.T) {
	mw := RequireRole(RoleReceptionist)
	if err := callWithRoles(t, mw, []string{RoleReceptionist}); err != nil {
		t.Errorf("expected receptionist to pass, got %v", err)
	}
}

func TestRequireRole_AdminBypass(t *testing.T) {
	mw := RequireRole(RoleReceptionist)
	if err := callWithRoles(t, mw, []string{RoleAdmin}); err != nil {
		t.Errorf("expected admin to pass any role check, got %v", err)
	}
}

func TestRequireRole_Denies(t *testing.T) {
	mw := RequireRole(RoleReceptionist)
	err := callWithRoles(t, mw, []string{RoleProfessional})
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	mw := RequireRole(RoleProfessional)
	err := callWithRoles(t, mw, nil)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}
