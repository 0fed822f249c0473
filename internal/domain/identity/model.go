package identity

import (
	"time"

	"github.com/google/uuid"
)

// Roles a caller can hold. Role assignments live in the user_roles table,
// not in the identity token; a user without a row is a patient.
const (
	RolePatient   = "patient"
	RoleClinician = "clinician"
)

// Caller is the resolved identity of the current request: who is asking,
// and in what capacity.
type Caller struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role"`
}

// Profile maps to the profiles table. PatientRef is the human-entered
// lookup key clinicians use to find a patient; it is stored upper-cased
// and is distinct from the internal id.
type Profile struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	PatientRef  string     `db:"patient_ref" json:"patient_ref"`
	FullName    string     `db:"full_name" json:"full_name"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Phone       *string    `db:"phone" json:"phone,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
