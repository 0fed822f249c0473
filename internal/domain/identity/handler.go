package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medifile/medifile/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/me", h.Me)
	api.GET("/patients/lookup", h.LookupPatient, auth.RequireRole(RoleClinician))
}

// Me reports the resolved caller identity and role, plus the caller's
// profile when one exists.
func (h *Handler) Me(c echo.Context) error {
	caller, err := h.svc.ResolveCaller(c.Request().Context())
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}

	resp := map[string]interface{}{
		"id":   caller.ID,
		"role": caller.Role,
	}
	if profile, err := h.svc.profiles.GetByID(c.Request().Context(), caller.ID); err == nil {
		resp["profile"] = profile
	}
	return c.JSON(http.StatusOK, resp)
}

// LookupPatient resolves a patient reference to profile display fields.
// Clinician-only; the route guard enforces the role and the access
// resolver re-checks it on document routes.
func (h *Handler) LookupPatient(c echo.Context) error {
	ref := c.QueryParam("patient_ref")
	if ref == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "patient_ref is required")
	}

	profile, err := h.svc.LookupPatient(c.Request().Context(), ref)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(http.StatusOK, profile)
}
