// Package blobstore stores uploaded report files. It defines the Store
// interface and three backends: an in-memory store for tests, a local
// filesystem store, and an S3 store.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

var (
	ErrNotFound           = errors.New("file not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
)

// MaxFileSize is the maximum allowed upload size in bytes (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// AllowedContentTypes lists the accepted report file MIME types.
var AllowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/png":       true,
}

// ValidateContentType rejects MIME types outside the report allowlist.
func ValidateContentType(contentType string) error {
	if !AllowedContentTypes[contentType] {
		return fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}
	return nil
}

// Store is the contract for report file backends. Keys are
// caller-chosen paths, e.g. "reports/<id>.pdf".
type Store interface {
	Put(ctx context.Context, key, contentType string, content io.Reader) (int64, error)
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// readCapped reads content enforcing the size cap.
func readCapped(content io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

type storedFile struct {
	contentType string
	content     []byte
}

// MemoryStore is a thread-safe in-memory Store for tests and development.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]storedFile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]storedFile)}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, content io.Reader) (int64, error) {
	if err := ValidateContentType(contentType); err != nil {
		return 0, err
	}
	data, err := readCapped(content)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	s.files[key] = storedFile{contentType: contentType, content: data}
	s.mu.Unlock()

	return int64(len(data)), nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	f, ok := s.files[key]
	s.mu.RUnlock()

	if !ok {
		return nil, "", ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(f.content)), f.contentType, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[key]; !ok {
		return ErrNotFound
	}
	delete(s.files, key)
	return nil
}
