package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medifile/medifile/internal/platform/auth"
)

// Service resolves caller identities and patient lookups. Role lookups are
// fronted by a bounded LRU cache: role assignments change rarely and every
// request resolves one.
type Service struct {
	roles     RoleRepository
	profiles  ProfileRepository
	roleCache *lru.Cache[uuid.UUID, string]
	logger    zerolog.Logger
}

func NewService(roles RoleRepository, profiles ProfileRepository, cacheSize int, logger zerolog.Logger) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	cache, err := lru.New[uuid.UUID, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating role cache: %w", err)
	}
	return &Service{
		roles:     roles,
		profiles:  profiles,
		roleCache: cache,
		logger:    logger,
	}, nil
}

// ResolveCaller returns the current caller's id and role. It must be
// called before any document operation. Absence of a role assignment
// means role = patient: least privilege for clinician-only actions.
func (s *Service) ResolveCaller(ctx context.Context) (Caller, error) {
	uid := auth.UserIDFromContext(ctx)
	if uid == "" {
		return Caller{}, auth.ErrUnauthenticated
	}
	id, err := uuid.Parse(uid)
	if err != nil {
		return Caller{}, auth.ErrUnauthenticated
	}

	if role, ok := s.roleCache.Get(id); ok {
		return Caller{ID: id, Role: role}, nil
	}

	role, err := s.roles.GetRole(ctx, id)
	switch {
	case errors.Is(err, ErrNoRole):
		role = RolePatient
	case err != nil:
		return Caller{}, fmt.Errorf("resolving role for %s: %w", id, err)
	}

	s.roleCache.Add(id, role)
	return Caller{ID: id, Role: role}, nil
}

// LookupPatient resolves a human-entered patient reference to a profile.
// The key is case-normalized before lookup; patient refs are stored
// upper-cased.
func (s *Service) LookupPatient(ctx context.Context, patientRef string) (*Profile, error) {
	ref := NormalizePatientRef(patientRef)
	if ref == "" {
		return nil, ErrProfileNotFound
	}
	return s.profiles.GetByPatientRef(ctx, ref)
}

// ResolvePatientRef satisfies the access resolver's profile lookup
// contract: key to internal id.
func (s *Service) ResolvePatientRef(ctx context.Context, patientRef string) (uuid.UUID, bool, error) {
	p, err := s.profiles.GetByPatientRef(ctx, patientRef)
	if errors.Is(err, ErrProfileNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return p.ID, true, nil
}

// NormalizePatientRef upper-cases and trims a human-entered lookup key.
func NormalizePatientRef(ref string) string {
	return strings.ToUpper(strings.TrimSpace(ref))
}

// RoleMiddleware resolves the caller's role once per request and stores it
// on the request context so route guards can check it without another
// round trip.
func (s *Service) RoleMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, err := s.ResolveCaller(c.Request().Context())
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
				}
				s.logger.Error().Err(err).Msg("role resolution failed")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "identity store unavailable")
			}
			ctx := auth.WithRole(c.Request().Context(), caller.Role)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
