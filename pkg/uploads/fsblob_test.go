package uploads

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSBlobStorePut(t *testing.T) {
	dir := t.TempDir()
	s := NewFSBlobStore(dir, "/v1/blobs")

	url, err := s.Put(context.Background(), "a-full.jpg", bytes.NewReader([]byte("jpeg bytes")))
	require.NoError(t, err)
	assert.Equal(t, "/v1/blobs/a-full.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "a-full.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)

	// no stray temp files remain
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFSBlobStoreRejectsPathTraversal(t *testing.T) {
	s := NewFSBlobStore(t.TempDir(), "/v1/blobs")
	_, err := s.Put(context.Background(), "../escape.jpg", bytes.NewReader([]byte("x")))
	require.Error(t, err)
}

func TestFSBlobStoreCanceledContext(t *testing.T) {
	s := NewFSBlobStore(t.TempDir(), "/v1/blobs")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Put(ctx, "a.jpg", bytes.NewReader([]byte("x")))
	require.Error(t, err)
}
