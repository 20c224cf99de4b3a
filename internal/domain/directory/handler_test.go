package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinsuite/agenda/internal/platform/auth"
)

func newTestServer(t *testing.T) (*echo.Echo, *Service) {
	t.Helper()
	svc := newTestService()

	e := echo.New()
	api := e.Group("/api/v1", auth.DevAuthMiddleware())
	NewHandler(svc).RegisterRoutes(api)
	return e, svc
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type listResponse struct {
	Data    []json.RawMessage `json:"data"`
	Total   int               `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
	HasMore bool              `json:"has_more"`
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var out listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestHandlerListPatients(t *testing.T) {
	e, svc := newTestServer(t)
	for _, name := range []string{"Ana Torres", "Luis Mena", "Rosa Filt"} {
		if err := svc.CreatePatient(context.Background(), &Patient{FullName: name}); err != nil {
			t.Fatalf("seed patient: %v", err)
		}
	}

	got := decodeList(t, doJSON(t, e, http.MethodGet, "/api/v1/patients", ""))
	if got.Total != 3 || len(got.Data) != 3 {
		t.Fatalf("total = %d, data = %d, want 3/3", got.Total, len(got.Data))
	}
	if got.Limit == 0 {
		t.Fatal("limit missing from response envelope")
	}
	if got.HasMore {
		t.Fatal("has_more = true for a single page")
	}
}

func TestHandlerListProfessionalsAndRooms(t *testing.T) {
	e, svc := newTestServer(t)
	if err := svc.CreateProfessional(context.Background(), &Professional{FullName: "Dr. Ruiz"}); err != nil {
		t.Fatalf("seed professional: %v", err)
	}
	if err := svc.CreateRoom(context.Background(), &Room{Name: "Consultorio 1"}); err != nil {
		t.Fatalf("seed room: %v", err)
	}

	if got := decodeList(t, doJSON(t, e, http.MethodGet, "/api/v1/professionals", "")); got.Total != 1 {
		t.Fatalf("professionals total = %d, want 1", got.Total)
	}
	if got := decodeList(t, doJSON(t, e, http.MethodGet, "/api/v1/rooms", "")); got.Total != 1 {
		t.Fatalf("rooms total = %d, want 1", got.Total)
	}
}

func TestHandlerGetPatient_NotFound(t *testing.T) {
	e, _ := newTestServer(t)
	if rec := doJSON(t, e, http.MethodGet, "/api/v1/patients/99", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHandlerCreateAndDeactivateRoom(t *testing.T) {
	e, svc := newTestServer(t)

	rec := doJSON(t, e, http.MethodPost, "/api/v1/rooms", `{"name": "Consultorio 2"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var r Room
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if rec := doJSON(t, e, http.MethodPatch, "/api/v1/rooms/1/active", `{"active": false}`); rec.Code != http.StatusNoContent {
		t.Fatalf("patch status = %d, want 204", rec.Code)
	}
	state, err := svc.Lookup(context.Background(), KindRoom, r.ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if state != StateInactive {
		t.Fatalf("state = %v, want StateInactive", state)
	}
}
