package document

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medifile/medifile/internal/domain/access"
	"github.com/medifile/medifile/internal/domain/identity"
	"github.com/medifile/medifile/internal/platform/auth"
)

// CallerResolver resolves the current request's identity.
type CallerResolver interface {
	ResolveCaller(ctx context.Context) (identity.Caller, error)
}

// ScopeResolver decides whose documents the caller may query.
type ScopeResolver interface {
	Resolve(ctx context.Context, caller identity.Caller, lookupKey string) (access.Scope, error)
}

type Handler struct {
	svc     *Service
	callers CallerResolver
	scopes  ScopeResolver
}

func NewHandler(svc *Service, callers CallerResolver, scopes ScopeResolver) *Handler {
	return &Handler{svc: svc, callers: callers, scopes: scopes}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/documents", h.List)
	api.GET("/documents/timeline", h.Timeline)
	api.POST("/documents", h.Upload)
	api.DELETE("/documents/:id", h.Delete)
	api.GET("/documents/:id/file", h.Download)
}

type listResponse struct {
	Items []View `json:"items"`
	Total int    `json:"total"`
}

// resolveScope runs identity and scope resolution for a request. The
// patient_ref query param is the clinician's on-behalf-of lookup key.
func (h *Handler) resolveScope(c echo.Context) (access.Scope, error) {
	caller, err := h.callers.ResolveCaller(c.Request().Context())
	if err != nil {
		return access.Scope{}, err
	}
	return h.scopes.Resolve(c.Request().Context(), caller, c.QueryParam("patient_ref"))
}

func (h *Handler) List(c echo.Context) error {
	scope, err := h.resolveScope(c)
	if err != nil {
		return mapError(err)
	}
	views, err := h.svc.List(c.Request().Context(), scope, c.QueryParam("q"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, listResponse{Items: views, Total: len(views)})
}

func (h *Handler) Timeline(c echo.Context) error {
	scope, err := h.resolveScope(c)
	if err != nil {
		return mapError(err)
	}
	views, err := h.svc.Timeline(c.Request().Context(), scope, c.QueryParam("q"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, listResponse{Items: views, Total: len(views)})
}

func (h *Handler) Upload(c echo.Context) error {
	scope, err := h.resolveScope(c)
	if err != nil {
		return mapError(err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}

	in := UploadInput{
		Title:       c.FormValue("title"),
		FileName:    file.Filename,
		FileSize:    file.Size,
		ContentType: file.Header.Get("Content-Type"),
		Metadata: Metadata{
			Category:     c.FormValue("category"),
			DoctorName:   c.FormValue("doctor_name"),
			HospitalName: c.FormValue("hospital_name"),
			Summary:      c.FormValue("summary"),
		},
	}
	if in.ContentType == "" {
		in.ContentType = "application/octet-stream"
	}
	if in.Metadata.Category != "" && !ValidCategory(in.Metadata.Category) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid category %q", in.Metadata.Category))
	}
	if raw := c.FormValue("document_date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "document_date must be YYYY-MM-DD")
		}
		in.Metadata.DocumentDate = &d
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer src.Close()

	view, err := h.svc.Upload(c.Request().Context(), scope, in, src)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusCreated, view)
}

func (h *Handler) Delete(c echo.Context) error {
	scope, err := h.resolveScope(c)
	if err != nil {
		return mapError(err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), scope, id); err != nil {
		return mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Download(c echo.Context) error {
	scope, err := h.resolveScope(c)
	if err != nil {
		return mapError(err)
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rc, header, err := h.svc.Open(c.Request().Context(), scope, id)
	if err != nil {
		return mapError(err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, header.FileName))
	return c.Stream(http.StatusOK, header.ContentType, rc)
}

// mapError converts core taxonomy errors to HTTP statuses. Transient infra
// failures carry the literal failure reason to the user.
func mapError(err error) error {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, access.ErrRoleRequired), errors.Is(err, ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")
	case errors.Is(err, access.ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, ErrBlobUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
}
