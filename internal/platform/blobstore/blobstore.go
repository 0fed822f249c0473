// Package blobstore provides object storage for uploaded document files.
// It defines the BlobStore interface, an in-memory implementation suitable
// for testing and development, and a MinIO-backed implementation for
// production.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
)

var (
	ErrBlobNotFound = errors.New("blob not found")
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
)

// MaxBlobSize is the maximum allowed blob size in bytes (50 MB).
const MaxBlobSize = 50 * 1024 * 1024

// BlobStore defines the contract for blob storage backends. Keys are
// caller-chosen object names of the form "<owner_id>/<uuid><ext>"; the
// store itself holds no document metadata.
type BlobStore interface {
	Put(ctx context.Context, key string, content io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

type storedBlob struct {
	content     []byte
	contentType string
}

// InMemoryBlobStore is a thread-safe, in-memory BlobStore for testing/dev.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

// NewInMemoryBlobStore returns a ready-to-use InMemoryBlobStore.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{
		blobs: make(map[string]*storedBlob),
	}
}

// Put reads the content and stores it under key, replacing any existing
// object with the same key.
func (s *InMemoryBlobStore) Put(_ context.Context, key string, content io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(io.LimitReader(content, MaxBlobSize+1))
	if err != nil {
		return fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxBlobSize {
		return ErrFileTooLarge
	}

	s.mu.Lock()
	s.blobs[key] = &storedBlob{content: data, contentType: contentType}
	s.mu.Unlock()
	return nil
}

// Get returns an io.ReadCloser over the blob content and its content type.
func (s *InMemoryBlobStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()

	if !ok {
		return nil, "", ErrBlobNotFound
	}
	return io.NopCloser(bytes.NewReader(blob.content)), blob.contentType, nil
}

// Delete removes a blob by key.
func (s *InMemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

// PublicURL returns a relative path the file handler serves in dev mode.
func (s *InMemoryBlobStore) PublicURL(key string) string {
	return path.Join("/files", key)
}

// Len reports the number of stored blobs.
func (s *InMemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
