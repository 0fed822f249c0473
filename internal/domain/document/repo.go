package document

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the relational-store contract for headers and metadata.
// Implementations return ErrNotFound for absent rows and raw store errors
// otherwise; conversion to ErrStoreUnavailable happens in the service.
type Repository interface {
	// ListByOwner returns the owner's rows ordered upload_timestamp
	// descending, each with its metadata when present.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Row, error)

	GetHeader(ctx context.Context, id uuid.UUID) (*Header, error)

	CreateHeader(ctx context.Context, h *Header) error

	CreateMetadata(ctx context.Context, documentID uuid.UUID, m Metadata) error

	// Delete removes a header; metadata cascades at the schema level.
	Delete(ctx context.Context, id uuid.UUID) error
}
