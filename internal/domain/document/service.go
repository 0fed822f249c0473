package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medifile/medifile/internal/domain/access"
	"github.com/medifile/medifile/internal/platform/blobstore"
)

// Notifier publishes a collection-wide change event. Events carry no
// payload; subscribers refetch a full snapshot and apply their own scope.
type Notifier interface {
	Publish()
}

// Recorder counts document mutations for the metrics endpoint.
type Recorder interface {
	RecordDocumentEvent(action string)
}

type nopRecorder struct{}

func (nopRecorder) RecordDocumentEvent(string) {}

// UploadInput carries the upload form fields. Metadata fields are all
// optional; a fully empty Metadata gets no row.
type UploadInput struct {
	Title    string
	FileName string
	FileSize int64
	// ContentType as declared by the upload.
	ContentType string
	Metadata    Metadata
}

// Service is the document store adapter: CRUD over headers, metadata, and
// the blob collaborator, scoped by the access resolver's decisions.
type Service struct {
	repo     Repository
	blobs    blobstore.BlobStore
	notifier Notifier
	metrics  Recorder
	builder  *Builder
	logger   zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.BlobStore, notifier Notifier, metrics Recorder, logger zerolog.Logger) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		repo:     repo,
		blobs:    blobs,
		notifier: notifier,
		metrics:  metrics,
		builder:  NewBuilder(blobs.PublicURL),
		logger:   logger,
	}
}

// List returns the scope's documents in upload order, newest first,
// filtered by searchQuery.
func (s *Service) List(ctx context.Context, scope access.Scope, searchQuery string) ([]View, error) {
	rows, err := s.repo.ListByOwner(ctx, scope.OwnerID)
	if err != nil {
		return nil, storeErr("listing documents", err)
	}
	return s.builder.Build(rows, searchQuery), nil
}

// Timeline returns the scope's documents ordered by the medical event
// date, newest first.
func (s *Service) Timeline(ctx context.Context, scope access.Scope, searchQuery string) ([]View, error) {
	rows, err := s.repo.ListByOwner(ctx, scope.OwnerID)
	if err != nil {
		return nil, storeErr("listing documents", err)
	}
	return s.builder.Timeline(rows, searchQuery), nil
}

// Upload stores the blob first, then the header row referencing it, then
// the metadata row when any field is set. If the header insert fails after
// the blob was stored, the orphaned blob is accepted garbage: no
// compensating delete.
func (s *Service) Upload(ctx context.Context, scope access.Scope, in UploadInput, content io.Reader) (View, error) {
	id := uuid.New()
	key := fmt.Sprintf("%s/%s%s", scope.OwnerID, id, filepath.Ext(in.FileName))

	if err := s.blobs.Put(ctx, key, content, in.FileSize, in.ContentType); err != nil {
		return View{}, fmt.Errorf("%w: %v", ErrBlobUnavailable, err)
	}

	header := &Header{
		ID:              id,
		OwnerID:         scope.OwnerID,
		Title:           in.Title,
		FileName:        in.FileName,
		FileLocation:    key,
		FileSize:        in.FileSize,
		ContentType:     in.ContentType,
		UploadTimestamp: time.Now().UTC(),
	}
	if header.Title == "" {
		header.Title = in.FileName
	}

	if err := s.repo.CreateHeader(ctx, header); err != nil {
		// The blob at key is now orphaned. Accepted limitation.
		s.logger.Warn().Str("blob_key", key).Err(err).Msg("header insert failed after blob store")
		return View{}, storeErr("creating document", err)
	}

	s.notifier.Publish()
	s.metrics.RecordDocumentEvent("upload")

	row := Row{Header: *header}
	if !in.Metadata.Empty() {
		if err := s.repo.CreateMetadata(ctx, header.ID, in.Metadata); err != nil {
			// The header exists without its annotation; surfaced, not
			// rolled back.
			return View{}, storeErr("creating document metadata", err)
		}
		row.Metadata = MetadataRecord{Present: true, Metadata: in.Metadata}
	}

	return s.builder.merge(row), nil
}

// Delete removes the header row; metadata cascades at the schema level.
// The blob is NOT deleted, matching upload's asymmetry. A row owned by
// someone else is ErrForbidden; an unknown id is ErrNotFound.
func (s *Service) Delete(ctx context.Context, scope access.Scope, id uuid.UUID) error {
	header, err := s.repo.GetHeader(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return storeErr("loading document", err)
	}
	if header.OwnerID != scope.OwnerID {
		return ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return storeErr("deleting document", err)
	}

	s.notifier.Publish()
	s.metrics.RecordDocumentEvent("delete")
	return nil
}

// Open streams a stored document's content, enforcing the caller's scope.
func (s *Service) Open(ctx context.Context, scope access.Scope, id uuid.UUID) (io.ReadCloser, *Header, error) {
	header, err := s.repo.GetHeader(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, storeErr("loading document", err)
	}
	if header.OwnerID != scope.OwnerID {
		return nil, nil, ErrForbidden
	}

	rc, _, err := s.blobs.Get(ctx, header.FileLocation)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrBlobUnavailable, err)
	}
	return rc, header, nil
}

// storeErr converts a raw store failure to the core taxonomy, keeping the
// literal failure reason for the UI.
func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
