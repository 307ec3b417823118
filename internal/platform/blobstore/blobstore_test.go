package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n, err := s.Put(ctx, "reports/r1.pdf", "application/pdf", strings.NewReader("%PDF-1.4 data"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != int64(len("%PDF-1.4 data")) {
		t.Errorf("size = %d", n)
	}

	rc, ct, err := s.Get(ctx, "reports/r1.pdf")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	if ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "%PDF-1.4 data" {
		t.Errorf("content = %q", data)
	}

	if err := s.Delete(ctx, "reports/r1.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Get(ctx, "reports/r1.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStore_RejectsDisallowedContentType(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Put(context.Background(), "reports/r1.exe", "application/x-msdownload", strings.NewReader("MZ"))
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestMemoryStore_RejectsOversizedFile(t *testing.T) {
	s := NewMemoryStore()
	big := bytes.NewReader(make([]byte, MaxFileSize+1))
	_, err := s.Put(context.Background(), "reports/big.pdf", "application/pdf", big)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestLocalStore_PutGetDelete(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Put(ctx, "reports/r2.png", "image/png", strings.NewReader("png-bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, ct, err := s.Get(ctx, "reports/r2.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer rc.Close()
	if ct != "image/png" {
		t.Errorf("content type = %q", ct)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "png-bytes" {
		t.Errorf("content = %q", data)
	}

	if err := s.Delete(ctx, "reports/r2.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Get(ctx, "reports/r2.png"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_RejectsPathTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	if _, err := s.Put(context.Background(), "../escape.pdf", "application/pdf", strings.NewReader("x")); err == nil {
		t.Error("expected traversal key to be rejected")
	}
}

func TestExtForContentType(t *testing.T) {
	if got := ExtForContentType("application/pdf"); got != ".pdf" {
		t.Errorf("pdf ext = %q", got)
	}
	if got := ExtForContentType("image/jpeg"); got != ".jpg" {
		t.Errorf("jpeg ext = %q", got)
	}
	if got := ExtForContentType("text/plain"); got != "" {
		t.Errorf("expected empty ext for disallowed type, got %q", got)
	}
}
