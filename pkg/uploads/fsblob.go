package uploads

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/valyala/bytebufferpool"
)

// BlobStore persists one derivative and returns a retrievable reference.
type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader) (string, error)
}

// FSBlobStore stores blobs as files under dir and references them as
// baseURL/<name>. Writes go through a temp file plus rename so a crashed
// upload never leaves a partial blob visible.
type FSBlobStore struct {
	dir     string
	baseURL string
}

func NewFSBlobStore(dir, baseURL string) *FSBlobStore {
	return &FSBlobStore{dir: dir, baseURL: baseURL}
}

// Dir returns the backing directory (used by the blob-serving handler).
func (s *FSBlobStore) Dir() string { return s.dir }

func (s *FSBlobStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid blob name: %s", name)
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if _, err := buf.ReadFrom(r); err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}

	f, err := os.CreateTemp(s.dir, ".blob-*")
	if err != nil {
		return "", fmt.Errorf("create blob temp: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(buf.B); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return "", fmt.Errorf("sync blob: %w", err)
	}
	f.Close()
	final := filepath.Join(s.dir, name)
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("move blob into place: %w", err)
	}
	_ = os.Chmod(final, 0o640)
	return s.baseURL + "/" + name, nil
}
