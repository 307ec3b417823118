package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes files under a base directory. The key's extension
// records the content type so Get can restore it without a sidecar.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{baseDir: baseDir}, nil
}

var extByContentType = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
}

var contentTypeByExt = map[string]string{
	".pdf": "application/pdf",
	".jpg": "image/jpeg",
	".png": "image/png",
}

// ExtForContentType returns the canonical file extension for an
// allowed content type, or "" when the type is not allowed.
func ExtForContentType(contentType string) string {
	return extByContentType[contentType]
}

func (s *LocalStore) path(key string) (string, error) {
	// Reject traversal outside the base dir.
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrNotFound
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *LocalStore) Put(_ context.Context, key, contentType string, content io.Reader) (int64, error) {
	if err := ValidateContentType(contentType); err != nil {
		return 0, err
	}
	data, err := readCapped(content)
	if err != nil {
		return 0, err
	}

	path, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}

	contentType := contentTypeByExt[strings.ToLower(filepath.Ext(path))]
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return io.NopCloser(bytes.NewReader(data)), contentType, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
