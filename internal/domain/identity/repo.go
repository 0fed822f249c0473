package identity

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoRole reports that a user has no row in user_roles. Callers treat
// this as role = patient.
var ErrNoRole = errors.New("no role assignment")

// ErrProfileNotFound reports that no profile matches a lookup.
var ErrProfileNotFound = errors.New("profile not found")

type RoleRepository interface {
	GetRole(ctx context.Context, userID uuid.UUID) (string, error)
}

type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByPatientRef(ctx context.Context, patientRef string) (*Profile, error)
}
