package blobstore

import (
	"context"
	"path"
	"strings"
)

// PrefixStore scopes a BlobStore to names under a directory prefix, so a
// library's index, articles and images can share one bucket or directory.
type PrefixStore struct {
	inner  BlobStore
	prefix string
}

// Sub returns a view of inner rooted at dir. An empty dir returns inner.
func Sub(inner BlobStore, dir string) BlobStore {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return inner
	}
	return &PrefixStore{inner: inner, prefix: dir + "/"}
}

func (s *PrefixStore) key(name string) string {
	return path.Join(s.prefix, name)
}

// Open opens dir/name.
func (s *PrefixStore) Open(ctx context.Context, name string) (Blob, error) {
	return s.inner.Open(ctx, s.key(name))
}

// Create creates dir/name.
func (s *PrefixStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	return s.inner.Create(ctx, s.key(name))
}

// Put writes dir/name.
func (s *PrefixStore) Put(ctx context.Context, name string, data []byte) error {
	return s.inner.Put(ctx, s.key(name), data)
}

// Delete removes dir/name.
func (s *PrefixStore) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, s.key(name))
}

// List returns names relative to dir.
func (s *PrefixStore) List(ctx context.Context, prefix string) ([]string, error) {
	names, err := s.inner.List(ctx, s.prefix+prefix)
	if err != nil {
		return nil, err
	}
	for i, n := range names {
		names[i] = strings.TrimPrefix(n, s.prefix)
	}
	return names, nil
}
