package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token_screener/internal/domain/entity"
)

func TestFileStore_PutGet(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "/blobs/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := s.Put(ctx, "mint-logo.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "/blobs/mint-logo.png", url)

	rc, err := s.Get(ctx, "mint-logo.png")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
	assert.Equal(t, "mint-logo.png", entries[0].Name())
}

func TestFileStore_RejectsBadKeys(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "/blobs")
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"../escape.png", "noext", "x.exe", filepath.Join("a", "b.png")} {
		_, err := s.Put(ctx, key, strings.NewReader("x"))
		assert.ErrorIs(t, err, entity.ErrInvalidInput, key)
	}

	_, err = s.Get(ctx, "missing.png")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestFileStore_CancelledPut(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), "/blobs")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Put(ctx, "a.png", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
