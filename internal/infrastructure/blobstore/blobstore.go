// Package blobstore keeps uploaded profile images on the local filesystem.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.(png|jpg|jpeg|gif|webp)$`)

// FileStore writes each blob to <dir>/<key> and serves it under publicBase.
type FileStore struct {
	dir        string
	publicBase string
}

var _ port.BlobStore = (*FileStore)(nil)

func NewFileStore(dir, publicBase string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// ValidKey reports whether key is an accepted blob name.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

func (s *FileStore) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("%w: invalid blob key %q", entity.ErrInvalidInput, key)
	}
	return filepath.Join(s.dir, key), nil
}

// Put streams r into a temp file and renames it over key.
func (s *FileStore) Put(ctx context.Context, key string, r io.Reader) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp blob: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close blob %s: %w", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return "", fmt.Errorf("commit blob %s: %w", key, err)
	}
	return s.publicBase + "/" + key, nil
}

func (s *FileStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	return f, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
