// Package access decides which documents a caller may see. A caller
// always sees their own documents; a clinician may additionally resolve a
// patient lookup key to view that patient's documents.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/medifile/medifile/internal/domain/identity"
)

var (
	// ErrRoleRequired is returned when a non-clinician supplies a patient
	// lookup key.
	ErrRoleRequired = errors.New("role required")

	// ErrPatientNotFound is returned when a lookup key matches no profile.
	ErrPatientNotFound = errors.New("patient not found")
)

// Scope is the resolved owner-id boundary a caller is permitted to query
// within.
type Scope struct {
	OwnerID uuid.UUID
}

// PatientResolver resolves a normalized patient lookup key to an internal
// patient id.
type PatientResolver interface {
	ResolvePatientRef(ctx context.Context, patientRef string) (uuid.UUID, bool, error)
}

// Resolver implements the scope decision. It has no side effects beyond
// the read-only profile lookup.
type Resolver struct {
	patients PatientResolver
}

func NewResolver(patients PatientResolver) *Resolver {
	return &Resolver{patients: patients}
}

// Resolve returns the scope the caller may query. An empty lookupKey is
// self-scope and always permitted. A non-empty key is permitted only for
// clinicians; non-clinicians are refused before any lookup happens, so
// they cannot probe whether a patient ref exists.
func (r *Resolver) Resolve(ctx context.Context, caller identity.Caller, lookupKey string) (Scope, error) {
	if lookupKey == "" {
		return Scope{OwnerID: caller.ID}, nil
	}

	if caller.Role != identity.RoleClinician {
		return Scope{}, ErrRoleRequired
	}

	ref := identity.NormalizePatientRef(lookupKey)
	patientID, found, err := r.patients.ResolvePatientRef(ctx, ref)
	if err != nil {
		return Scope{}, fmt.Errorf("resolving patient ref %q: %w", ref, err)
	}
	if !found {
		return Scope{}, ErrPatientNotFound
	}
	return Scope{OwnerID: patientID}, nil
}
