package document

import (
	"time"

	"github.com/google/uuid"
)

// Header maps to the documents table: the storage and ownership facts of
// one uploaded file. OwnerID is immutable and is the sole authority for
// ownership. Rows are created on upload and deleted on delete, never
// updated in place.
type Header struct {
	ID              uuid.UUID `db:"id" json:"id"`
	OwnerID         uuid.UUID `db:"owner_id" json:"owner_id"`
	Title           string    `db:"title" json:"title"`
	FileName        string    `db:"file_name" json:"file_name"`
	FileLocation    string    `db:"file_location" json:"file_location"`
	FileSize        int64     `db:"file_size" json:"file_size"`
	ContentType     string    `db:"content_type" json:"content_type"`
	UploadTimestamp time.Time `db:"upload_timestamp" json:"upload_timestamp"`
}

// Metadata is the optional descriptive annotation for a header, written
// once at creation. It carries no ownership information.
type Metadata struct {
	Category     string     `db:"category" json:"category,omitempty"`
	DocumentDate *time.Time `db:"document_date" json:"document_date,omitempty"`
	DoctorName   string     `db:"doctor_name" json:"doctor_name,omitempty"`
	HospitalName string     `db:"hospital_name" json:"hospital_name,omitempty"`
	Summary      string     `db:"summary" json:"summary,omitempty"`
}

// Empty reports whether every metadata field is absent. An empty record
// gets no row in document_metadata.
func (m Metadata) Empty() bool {
	return m.Category == "" && m.DocumentDate == nil &&
		m.DoctorName == "" && m.HospitalName == "" && m.Summary == ""
}

// MetadataRecord models the 1:0/1:1 relationship explicitly. Nullable
// fields never leak past the view builder; default substitution happens
// there and nowhere else.
type MetadataRecord struct {
	Present bool
	Metadata
}

// Row is one fetched header with its metadata, if any.
type Row struct {
	Header   Header
	Metadata MetadataRecord
}

// DefaultCategory is substituted when a document carries no category.
const DefaultCategory = "General"

// Categories a document may be filed under.
var Categories = []string{
	"Prescription",
	"Lab Report",
	"X-Ray/Scan",
	"Hospital Bill",
	"Pharmacy Bill",
	"Discharge Summary",
	"Medical Certificate",
	"Other",
}

// ValidCategory reports whether s is one of the enumerated categories.
func ValidCategory(s string) bool {
	for _, c := range Categories {
		if c == s {
			return true
		}
	}
	return false
}

// View is the merged, display-ready projection of header + metadata.
// Category and DocumentDate always have defined values.
type View struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Category     string    `json:"category"`
	DocumentDate time.Time `json:"document_date"`
	FileName     string    `json:"file_name"`
	FileURL      string    `json:"file_url"`
	FileSize     int64     `json:"file_size"`
	ContentType  string    `json:"content_type"`
	DoctorName   string    `json:"doctor_name,omitempty"`
	HospitalName string    `json:"hospital_name,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
