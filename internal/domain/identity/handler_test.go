package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medifile/medifile/internal/platform/auth"
)

func newHandlerFixture(t *testing.T) (*Handler, *mockRoleRepo, *mockProfileRepo) {
	t.Helper()
	roles := newMockRoleRepo()
	profiles := newMockProfileRepo()
	svc := newTestService(t, roles, profiles)
	return NewHandler(svc), roles, profiles
}

func requestAs(e *echo.Echo, userID uuid.UUID, target string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, userID.String())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestMe_ReturnsCallerAndRole(t *testing.T) {
	h, roles, _ := newHandlerFixture(t)
	userID := uuid.New()
	roles.roles[userID] = RoleClinician

	e := echo.New()
	c, rec := requestAs(e, userID, "/api/v1/me")

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, userID.String()) {
		t.Errorf("expected caller id in body: %s", body)
	}
	if !strings.Contains(body, `"role":"clinician"`) {
		t.Errorf("expected clinician role in body: %s", body)
	}
}

func TestMe_IncludesProfileWhenPresent(t *testing.T) {
	h, _, profiles := newHandlerFixture(t)
	userID := uuid.New()
	profiles.profiles["PAT777777"] = &Profile{ID: userID, PatientRef: "PAT777777", FullName: "Ravi Nair"}

	e := echo.New()
	c, rec := requestAs(e, userID, "/api/v1/me")

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), "Ravi Nair") {
		t.Errorf("expected profile in body: %s", rec.Body.String())
	}
}

func TestMe_Unauthenticated(t *testing.T) {
	h, _, _ := newHandlerFixture(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Me(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestLookupPatient_Found(t *testing.T) {
	h, _, profiles := newHandlerFixture(t)
	profiles.profiles["PAT123456"] = &Profile{ID: uuid.New(), PatientRef: "PAT123456", FullName: "Asha Verma"}

	e := echo.New()
	c, rec := requestAs(e, uuid.New(), "/api/v1/patients/lookup?patient_ref=pat123456")

	if err := h.LookupPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Asha Verma") {
		t.Errorf("expected profile in body: %s", rec.Body.String())
	}
}

func TestLookupPatient_NotFoundStatus(t *testing.T) {
	h, _, _ := newHandlerFixture(t)

	e := echo.New()
	c, _ := requestAs(e, uuid.New(), "/api/v1/patients/lookup?patient_ref=PAT000000")

	err := h.LookupPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", httpErr.Code)
	}
}

func TestLookupPatient_MissingParam(t *testing.T) {
	h, _, _ := newHandlerFixture(t)

	e := echo.New()
	c, _ := requestAs(e, uuid.New(), "/api/v1/patients/lookup")

	err := h.LookupPatient(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %v", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestRoleMiddleware_StoresRoleOnContext(t *testing.T) {
	roles := newMockRoleRepo()
	userID := uuid.New()
	roles.roles[userID] = RoleClinician
	svc := newTestService(t, roles, newMockProfileRepo())

	e := echo.New()
	c, _ := requestAs(e, userID, "/")

	var seenRole string
	handler := func(c echo.Context) error {
		seenRole = auth.RoleFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	}

	if err := svc.RoleMiddleware()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenRole != RoleClinician {
		t.Errorf("expected clinician on context, got %q", seenRole)
	}
}
